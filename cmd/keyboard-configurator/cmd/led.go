package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/backend"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

// defaultModeSpeed is used when a layer has no cached speed and --speed is
// not given.
const defaultModeSpeed = 128

var modeSpeed int

var ledCmd = &cobra.Command{
	Use:   "led",
	Short: "Read and change lighting",
	Long: `Read and change the per-layer color, brightness and lighting mode, the
color of single keys, and persist the lighting settings in the keyboard.`,
}

var ledColorCmd = &cobra.Command{
	Use:   "color LAYER [COLOR]",
	Short: "Show or set the color of a layer",
	Long: `Show the color of LAYER, or set it to COLOR given as rrggbb.

Examples:
  keyboard-configurator led color 0
  keyboard-configurator led color 0 ff8000`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLedColor,
}

var ledKeyColorCmd = &cobra.Command{
	Use:   "key-color KEY [COLOR]",
	Short: "Show or set the color of one key",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLedKeyColor,
}

var ledBrightnessCmd = &cobra.Command{
	Use:   "brightness LAYER [VALUE]",
	Short: "Show or set the brightness of a layer",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLedBrightness,
}

var ledModeCmd = &cobra.Command{
	Use:   "mode LAYER [MODE]",
	Short: "Show or set the lighting mode of a layer",
	Long: `Show the lighting mode of LAYER, or set it to MODE given by id or index.
Run "led modes" for the list of modes.

Examples:
  keyboard-configurator led mode 1 CYCLE_SPIRAL --speed 200`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLedMode,
}

var ledModesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List lighting modes",
	Args:  cobra.NoArgs,
	RunE:  runLedModes,
}

var ledSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist the lighting settings in the keyboard",
	Args:  cobra.NoArgs,
	RunE:  runLedSave,
}

func init() {
	rootCmd.AddCommand(ledCmd)
	ledCmd.AddCommand(ledColorCmd)
	ledCmd.AddCommand(ledKeyColorCmd)
	ledCmd.AddCommand(ledBrightnessCmd)
	ledCmd.AddCommand(ledModeCmd)
	ledCmd.AddCommand(ledModesCmd)
	ledCmd.AddCommand(ledSaveCmd)

	ledModeCmd.Flags().IntVar(&modeSpeed, "speed", -1, "effect speed 0-255 (default keeps the current speed)")
}

func parseLayer(s string) (int, error) {
	layer, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid layer %q", s)
	}
	return layer, nil
}

func layerOf(b *backend.Board, s string) (*backend.Layer, error) {
	index, err := parseLayer(s)
	if err != nil {
		return nil, err
	}
	l, ok := b.Layer(index)
	if !ok {
		return nil, fmt.Errorf("board %s has no layer %d", b.ID(), index)
	}
	return l, nil
}

func runLedColor(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}
	l, err := layerOf(b, args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		color, err := keyboard.ParseRgb(strings.TrimPrefix(args[1], "#"))
		if err != nil {
			return err
		}
		if err := b.SetLayerColor(int(l.Index), color); err != nil {
			return err
		}
	}

	color, ok := l.Color()
	if !ok {
		fmt.Printf("Layer %d: no color\n", l.Index)
		return nil
	}
	fmt.Printf("Layer %d color: #%s\n", l.Index, color)
	return nil
}

func runLedKeyColor(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}
	k, ok := b.KeyByName(args[0])
	if !ok {
		return fmt.Errorf("unknown key %q", args[0])
	}

	if len(args) == 2 {
		color, err := keyboard.ParseRgb(strings.TrimPrefix(args[1], "#"))
		if err != nil {
			return err
		}
		if err := b.SetKeyColor(k, color); err != nil {
			return err
		}
	}

	color, ok := k.Color()
	if !ok {
		fmt.Printf("%s: no color\n", k.Name)
		return nil
	}
	fmt.Printf("%s color: #%s\n", k.Name, color)
	return nil
}

func runLedBrightness(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}
	l, err := layerOf(b, args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid brightness %q", args[1])
		}
		if err := b.SetLayerBrightness(int(l.Index), value); err != nil {
			return err
		}
	}

	value, ok := l.Brightness()
	if !ok {
		fmt.Printf("Layer %d: no brightness\n", l.Index)
		return nil
	}
	fmt.Printf("Layer %d brightness: %d/%d\n", l.Index, value, b.MaxBrightness())
	return nil
}

func runLedMode(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}
	l, err := layerOf(b, args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		mode, err := lookupMode(args[1])
		if err != nil {
			return err
		}
		speed := defaultModeSpeed
		if _, cached, ok := l.Mode(); ok {
			speed = int(cached)
		}
		if modeSpeed >= 0 {
			speed = modeSpeed
		}
		if speed > 0xFF {
			return fmt.Errorf("speed %d out of range 0-255", speed)
		}
		if err := b.SetLayerMode(int(l.Index), mode.Index, uint8(speed)); err != nil {
			return err
		}
	}

	index, speed, ok := l.Mode()
	if !ok {
		fmt.Printf("Layer %d: no lighting mode\n", l.Index)
		return nil
	}
	name := strconv.Itoa(int(index))
	if m, found := backend.ModeByIndex(index); found {
		name = fmt.Sprintf("%s (%s)", m.Name, m.ID)
	}
	fmt.Printf("Layer %d mode: %s, speed %d\n", l.Index, name, speed)
	return nil
}

func lookupMode(s string) (backend.Mode, error) {
	if m, ok := backend.ModeByID(s); ok {
		return m, nil
	}
	if index, err := strconv.ParseUint(s, 10, 8); err == nil {
		if m, ok := backend.ModeByIndex(uint8(index)); ok {
			return m, nil
		}
	}
	return backend.Mode{}, fmt.Errorf("unknown mode %q", s)
}

func runLedModes(cmd *cobra.Command, args []string) error {
	fmt.Println("Lighting modes:")
	for _, m := range backend.Modes {
		fmt.Printf("  %2d  %-24s %s\n", m.Index, m.ID, m.Name)
	}
	return nil
}

func runLedSave(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board()
	if err != nil {
		return err
	}
	if err := b.Save(); err != nil {
		return err
	}
	fmt.Printf("Saved lighting of %s [%s]\n", b.DisplayName(), b.ID())
	return nil
}
