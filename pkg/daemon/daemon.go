// Package daemon is the request/response surface between the configurator and
// keyboard firmware. Four variants share the Daemon interface: an in-memory
// Dummy, a Direct USB HID implementation, a Client that forwards every call to
// a (usually privileged) subprocess, and the Server that runs on the other end
// of that subprocess.
package daemon

import (
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

// LED index conventions shared by every variant.
const (
	// LedAll addresses every keyboard LED at once.
	LedAll uint8 = 0xFF
	// LedLayerBase + layer addresses the color or brightness of a layer.
	LedLayerBase uint8 = 0xF0
)

// LayerIndex returns the LED index that addresses layer.
func LayerIndex(layer uint8) uint8 {
	return LedLayerBase + layer
}

// Daemon abstracts access to attached keyboards. Board ids are only valid
// between refreshes; a board that disappears yields ErrDeviceGone (or a
// remote error carrying the same condition) on its next call.
type Daemon interface {
	Refresh() error
	Boards() ([]keyboard.BoardID, error)

	Model(board keyboard.BoardID) (string, error)
	Version(board keyboard.BoardID) (string, error)

	KeymapGet(board keyboard.BoardID, layer, output, input uint8) (uint16, error)
	KeymapSet(board keyboard.BoardID, layer, output, input uint8, value uint16) error
	MatrixGet(board keyboard.BoardID) (keyboard.Matrix, error)

	Color(board keyboard.BoardID, index uint8) (keyboard.Rgb, error)
	SetColor(board keyboard.BoardID, index uint8, color keyboard.Rgb) error
	MaxBrightness(board keyboard.BoardID) (int, error)
	Brightness(board keyboard.BoardID, index uint8) (int, error)
	SetBrightness(board keyboard.BoardID, index uint8, value int) error
	Mode(board keyboard.BoardID, layer uint8) (mode, speed uint8, err error)
	SetMode(board keyboard.BoardID, layer, mode, speed uint8) error
	LedSave(board keyboard.BoardID) error
}
