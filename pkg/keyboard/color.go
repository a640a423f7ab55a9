package keyboard

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Rgb is an 8-bit per channel color.
type Rgb struct {
	R uint8
	G uint8
	B uint8
}

// NewRgb builds a color from its channels.
func NewRgb(r, g, b uint8) Rgb {
	return Rgb{R: r, G: g, B: b}
}

// ParseRgb decodes exactly six hex digits. A leading '#' must be stripped by
// the caller.
func ParseRgb(s string) (Rgb, error) {
	if len(s) != 6 {
		return Rgb{}, fmt.Errorf("keyboard: invalid color %q: want 6 hex digits", s)
	}
	var b [3]byte
	if _, err := hex.Decode(b[:], []byte(s)); err != nil {
		return Rgb{}, fmt.Errorf("keyboard: invalid color %q: %w", s, err)
	}
	return Rgb{R: b[0], G: b[1], B: b[2]}, nil
}

// String returns the lowercase six-hex-digit encoding, without '#'.
func (c Rgb) String() string {
	return hex.EncodeToString([]byte{c.R, c.G, c.B})
}

// MarshalJSON encodes the color as [r, g, b].
func (c Rgb) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{int(c.R), int(c.G), int(c.B)})
}

func (c *Rgb) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("keyboard: color must be [r,g,b]: %w", err)
	}
	if len(v) != 3 {
		return fmt.Errorf("keyboard: color must be [r,g,b], got %d channels", len(v))
	}
	for _, ch := range v {
		if ch < 0 || ch > 0xFF {
			return fmt.Errorf("keyboard: color channel %d out of range", ch)
		}
	}
	*c = Rgb{R: uint8(v[0]), G: uint8(v[1]), B: uint8(v[2])}
	return nil
}

// MarshalYAML renders the color as "#rrggbb".
func (c Rgb) MarshalYAML() (interface{}, error) {
	return "#" + c.String(), nil
}
