package keymapfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/backend"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

// DefaultSpeed is used by mode statements without a speed when the layer
// has no cached speed.
const DefaultSpeed = 128

// Apply runs every statement of f against board, in order. It stops at the
// first failing statement and reports its position; statements before it
// stay applied.
func Apply(board *backend.Board, f *File, km *layout.Keymap) error {
	for _, block := range f.Layers {
		for _, stmt := range block.Statements {
			if err := applyStatement(board, block.Index, stmt, km); err != nil {
				return fmt.Errorf("%s: %w", stmt.Pos, err)
			}
		}
	}
	return nil
}

func applyStatement(board *backend.Board, layer int, stmt *Statement, km *layout.Keymap) error {
	switch {
	case stmt.Map != nil:
		key, ok := board.KeyByName(stmt.Map.Key)
		if !ok {
			return fmt.Errorf("unknown key %q", stmt.Map.Key)
		}
		code, err := km.Parse(stmt.Map.Value)
		if err != nil {
			return err
		}
		return board.SetScancode(key, layer, code)

	case stmt.Color != nil:
		color, err := keyboard.ParseRgb(strings.TrimPrefix(stmt.Color.Value, "#"))
		if err != nil {
			return err
		}
		return board.SetLayerColor(layer, color)

	case stmt.Brightness != nil:
		return board.SetLayerBrightness(layer, stmt.Brightness.Value)

	case stmt.Mode != nil:
		mode, err := resolveMode(stmt.Mode.Mode)
		if err != nil {
			return err
		}
		speed := DefaultSpeed
		if l, ok := board.Layer(layer); ok {
			if _, cached, ok := l.Mode(); ok {
				speed = int(cached)
			}
		}
		if stmt.Mode.Speed != nil {
			speed = *stmt.Mode.Speed
		}
		if speed < 0 || speed > 0xFF {
			return fmt.Errorf("speed %d out of range 0..255", speed)
		}
		return board.SetLayerMode(layer, mode.Index, uint8(speed))
	}
	return fmt.Errorf("empty statement")
}

func resolveMode(s string) (backend.Mode, error) {
	if m, ok := backend.ModeByID(s); ok {
		return m, nil
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		if m, ok := backend.ModeByIndex(uint8(n)); ok {
			return m, nil
		}
	}
	return backend.Mode{}, fmt.Errorf("unknown lighting mode %q", s)
}
