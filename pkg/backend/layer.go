package backend

import "github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"

// Layer is the cached lighting state of one keymap layer. Each value is only
// present when the board supports it.
type Layer struct {
	Index uint8

	mode    uint8
	speed   uint8
	hasMode bool

	brightness    int
	hasBrightness bool

	color    keyboard.Rgb
	hasColor bool
}

// Mode returns the lighting mode index and speed.
func (l *Layer) Mode() (mode, speed uint8, ok bool) {
	return l.mode, l.speed, l.hasMode
}

// Brightness returns the layer brightness.
func (l *Layer) Brightness() (int, bool) {
	return l.brightness, l.hasBrightness
}

// Color returns the layer color.
func (l *Layer) Color() (keyboard.Rgb, bool) {
	return l.color, l.hasColor
}
