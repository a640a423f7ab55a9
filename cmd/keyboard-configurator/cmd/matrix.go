package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/backend"
)

var (
	matrixWatch    bool
	matrixInterval time.Duration
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Show the keys currently held down",
	Long: `Read the live key matrix of the board and print the pressed keys. With
--watch the matrix is polled until interrupted and every change is printed,
which is useful to test a keyboard's switches.`,
	Args: cobra.NoArgs,
	RunE: runMatrix,
}

func init() {
	rootCmd.AddCommand(matrixCmd)

	matrixCmd.Flags().BoolVarP(&matrixWatch, "watch", "w", false, "poll until interrupted")
	matrixCmd.Flags().DurationVar(&matrixInterval, "interval", 50*time.Millisecond, "poll interval for --watch")
}

func runMatrix(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}

	if !matrixWatch {
		line, err := pressedLine(b)
		if err != nil {
			return err
		}
		fmt.Println(line)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(matrixInterval)
	defer ticker.Stop()

	last := ""
	for {
		line, err := pressedLine(b)
		if err != nil {
			return err
		}
		if line != last {
			fmt.Println(line)
			last = line
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func pressedLine(b *backend.Board) (string, error) {
	keys, err := b.PressedKeys()
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "Pressed: none", nil
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.Name)
	}
	return "Pressed: " + strings.Join(names, " "), nil
}
