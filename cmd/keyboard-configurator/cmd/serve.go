package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceKeyboard/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve the boards over a REST API with a websocket stream of board-added
and board-removed events. The daemon is refreshed every refresh_interval.

Examples:
  # Serve on the configured address (default 127.0.0.1:8076)
  keyboard-configurator serve

  # Serve two simulated boards on another port
  keyboard-configurator serve --listen :9000 --dummy system76/launch_1 --dummy system76/launch_lite_1`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "address to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(s.backend, s.keymap, s.log)
	fmt.Printf("Serving %d board(s) on http://%s/api\n", len(s.backend.Boards()), s.cfg.Listen)
	if err := server.ListenAndServe(ctx, s.cfg.Listen, s.cfg.RefreshInterval); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
