package backend

import (
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

// Key is one physical key of a board together with its cached state.
type Key struct {
	layout.Key
	// Index is the position of the key in Board.Keys.
	Index int
	// Leds are the LED indexes under the key; empty when it has none.
	Leds []uint8

	scancodes []uint16
	color     keyboard.Rgb
	hasColor  bool
}

// Scancode returns the cached binding of the key on layer.
func (k *Key) Scancode(layer int) (uint16, bool) {
	if layer < 0 || layer >= len(k.scancodes) {
		return 0, false
	}
	return k.scancodes[layer], true
}

// Scancodes returns the cached bindings of every layer.
func (k *Key) Scancodes() []uint16 {
	return append([]uint16(nil), k.scancodes...)
}

// Color returns the per-key color, if the board has per-key lighting.
func (k *Key) Color() (keyboard.Rgb, bool) {
	return k.color, k.hasColor
}
