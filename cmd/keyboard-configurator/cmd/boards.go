package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List attached boards",
	Long: `Refresh the daemon and print every board it reports, with its model,
firmware version and lighting capabilities.`,
	Args: cobra.NoArgs,
	RunE: runBoards,
}

func init() {
	rootCmd.AddCommand(boardsCmd)
}

func runBoards(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	boards := s.backend.Boards()
	if len(boards) == 0 {
		fmt.Println("No boards found.")
		return nil
	}

	fmt.Printf("Found %d board(s):\n", len(boards))
	for _, b := range boards {
		fmt.Printf("  [%s] %s (%s) firmware %s\n", b.ID(), b.DisplayName(), b.Model(), b.Version())
		if verbose {
			caps := b.Capabilities()
			fmt.Printf("      Layers:        %d\n", caps.Layers)
			fmt.Printf("      Keys:          %d\n", len(b.Keys()))
			fmt.Printf("      Brightness:    %v (max %d)\n", caps.HasBrightness, b.MaxBrightness())
			fmt.Printf("      Color:         %v\n", caps.HasColor)
			fmt.Printf("      Modes:         %v\n", caps.HasMode)
			fmt.Printf("      Per-key color: %v\n", caps.PerKeyColor)
		}
	}
	return nil
}
