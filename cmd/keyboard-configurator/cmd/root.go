package cmd

import (
	"fmt"
	"os"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/daemon"
)

var (
	// Global flags
	cfgFile    string
	verbose    bool
	boardFlag  string
	daemonMode bool
)

var rootCmd = &cobra.Command{
	Use:   "keyboard-configurator",
	Short: "Keyboard layout and lighting configurator",
	Long: `Configure the keymap and lighting of System76 keyboards.

Boards are reached through a daemon: an in-memory dummy for demos, direct USB
access when running as root, or a privileged copy of this program started
through pkexec.

Examples:
  keyboard-configurator boards                          # List attached boards
  keyboard-configurator --dummy system76/launch_1 boards # Use a simulated board
  keyboard-configurator keymap get ESC                  # Show a key's bindings
  keyboard-configurator led color 0 ff8000              # Set layer 0 color
  keyboard-configurator serve                           # Start the HTTP API`,
	Version:      "1.0.0",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runRoot,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/keyboard-configurator/config.yaml)")
	flags.String("daemon-kind", "", "daemon to use (auto, dummy, direct, elevated)")
	flags.StringSlice("dummy", nil, "simulate a board of this model (repeatable)")
	flags.String("layout-dir", "", "directory with extra layout files")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&boardFlag, "board", "b", "", "board id (default is the first board)")

	rootCmd.Flags().BoolVar(&daemonMode, "daemon", false, "serve the daemon protocol on stdin/stdout")
}

// bindFlags binds flags to viper keys. It runs from initConfig, after every
// subcommand has registered its flags.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	viper.BindPFlag("daemon", flags.Lookup("daemon-kind"))
	viper.BindPFlag("dummy_boards", flags.Lookup("dummy"))
	viper.BindPFlag("layout_dir", flags.Lookup("layout-dir"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func initConfig() {
	bindFlags()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if !daemonMode {
		return cmd.Help()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	supported, err := sdaemon.SdNotify(false, sdaemon.SdNotifyReady)
	if err != nil {
		log.Warnw("Failed to notify systemd", "error", err)
	} else if supported {
		log.Debugw("Notified systemd")
	}

	if err := daemon.RunStdio(log); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	return nil
}
