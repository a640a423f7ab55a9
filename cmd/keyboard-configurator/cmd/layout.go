package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

var layoutYAML bool

var layoutCmd = &cobra.Command{
	Use:   "layout [model|file]",
	Short: "Show a physical layout",
	Long: `Parse a physical layout and print its keys with their matrix position and
geometry. The argument is a model id, a display name or a KLE JSON file.
Without an argument the layout of the selected board is shown.

Examples:
  keyboard-configurator layout system76/launch_1
  keyboard-configurator layout ./physical.json --yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)

	layoutCmd.Flags().BoolVar(&layoutYAML, "yaml", false, "print the layout as YAML")
}

func runLayout(cmd *cobra.Command, args []string) error {
	physical, title, err := resolvePhysical(args)
	if err != nil {
		return err
	}

	if layoutYAML {
		out, err := yaml.Marshal(physical)
		if err != nil {
			return fmt.Errorf("encode layout: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	fmt.Printf("%s: %d keys in %d rows\n", title, len(physical.Keys), physical.Rows())
	for _, k := range physical.Keys {
		fmt.Printf("  %-14s row %2d col %2d  x=%6.2f y=%6.2f w=%5.2f h=%5.2f  #%s\n",
			k.Name, k.Row, k.Col, k.Physical.X, k.Physical.Y, k.Physical.W, k.Physical.H, k.Background)
	}
	return nil
}

func resolvePhysical(args []string) (*layout.Physical, string, error) {
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && !info.IsDir() {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return nil, "", fmt.Errorf("read layout: %w", err)
			}
			physical, err := layout.ParsePhysical(data)
			if err != nil {
				return nil, "", fmt.Errorf("parse %s: %w", args[0], err)
			}
			title := physical.Meta.Name
			if title == "" {
				title = args[0]
			}
			return physical, title, nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return nil, "", err
		}
		repo, err := openRepository(cfg)
		if err != nil {
			return nil, "", err
		}
		l, err := repo.Lookup(args[0])
		if err != nil {
			return nil, "", err
		}
		return l.Physical, fmt.Sprintf("%s (%s)", l.Capabilities.DisplayName, l.Model), nil
	}

	s, err := openSession()
	if err != nil {
		return nil, "", err
	}
	defer s.Close()
	b, err := s.board()
	if err != nil {
		return nil, "", err
	}
	return b.Layout().Physical, fmt.Sprintf("%s (%s)", b.DisplayName(), b.Layout().Model), nil
}
