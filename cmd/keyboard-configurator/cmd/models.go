package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known keyboard models",
	Long:  `Print every model with a layout, including those loaded with --layout-dir.`,
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}

	fmt.Println("Known models:")
	for _, model := range repo.Models() {
		l, err := repo.Lookup(model)
		if err != nil {
			fmt.Printf("  %-28s (invalid: %v)\n", model, err)
			continue
		}
		fmt.Printf("  %-28s %s, %d keys, %d layers\n", model, l.Capabilities.DisplayName,
			len(l.Physical.Keys), l.Capabilities.Layers)
	}
	return nil
}
