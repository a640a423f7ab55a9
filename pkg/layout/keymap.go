package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Keymap maps well-known scancode names to their 16-bit values and back.
type Keymap struct {
	byName map[string]uint16
	byCode map[uint16]string
}

// NewKeymap builds a table from name/code pairs. Names and codes must both be
// unique.
func NewKeymap(entries map[string]uint16) (*Keymap, error) {
	km := &Keymap{
		byName: make(map[string]uint16, len(entries)),
		byCode: make(map[uint16]string, len(entries)),
	}
	for name, code := range entries {
		if other, dup := km.byCode[code]; dup {
			return nil, fmt.Errorf("layout: scancode 0x%04X used by %s and %s", code, other, name)
		}
		km.byName[name] = code
		km.byCode[code] = name
	}
	return km, nil
}

// DefaultKeymap returns the scancode table understood by System76 firmware.
// Standard keys use their USB HID keyboard usage IDs.
func DefaultKeymap() *Keymap {
	entries := map[string]uint16{
		"NONE":      0x0000,
		"ROLL_OVER": 0x0001,

		"ENTER":       0x0028,
		"ESC":         0x0029,
		"BKSP":        0x002A,
		"TAB":         0x002B,
		"SPACE":       0x002C,
		"MINUS":       0x002D,
		"EQUALS":      0x002E,
		"BRACE_OPEN":  0x002F,
		"BRACE_CLOSE": 0x0030,
		"BACKSLASH":   0x0031,
		"SEMICOLON":   0x0033,
		"QUOTE":       0x0034,
		"TICK":        0x0035,
		"COMMA":       0x0036,
		"PERIOD":      0x0037,
		"SLASH":       0x0038,
		"CAPS":        0x0039,

		"PRINT_SCREEN": 0x0046,
		"SCROLL_LOCK":  0x0047,
		"PAUSE":        0x0048,
		"INSERT":       0x0049,
		"HOME":         0x004A,
		"PGUP":         0x004B,
		"DEL":          0x004C,
		"END":          0x004D,
		"PGDN":         0x004E,
		"RIGHT":        0x004F,
		"LEFT":         0x0050,
		"DOWN":         0x0051,
		"UP":           0x0052,

		"NUM_LOCK":     0x0053,
		"NUM_SLASH":    0x0054,
		"NUM_ASTERISK": 0x0055,
		"NUM_MINUS":    0x0056,
		"NUM_PLUS":     0x0057,
		"NUM_ENTER":    0x0058,
		"NUM_0":        0x0062,
		"NUM_PERIOD":   0x0063,
		"APP":          0x0065,

		"LCTL":   0x00E0,
		"LSFT":   0x00E1,
		"LALT":   0x00E2,
		"LSUPER": 0x00E3,
		"RCTL":   0x00E4,
		"RSFT":   0x00E5,
		"RALT":   0x00E6,
		"RSUPER": 0x00E7,

		"MUTE":            0x2001,
		"VOLUME_DOWN":     0x2002,
		"VOLUME_UP":       0x2003,
		"PLAY_PAUSE":      0x2004,
		"MEDIA_NEXT":      0x2005,
		"MEDIA_PREV":      0x2006,
		"BRIGHTNESS_DOWN": 0x2010,
		"BRIGHTNESS_UP":   0x2011,
		"DISPLAY_MODE":    0x2012,
		"SUSPEND":         0x2013,
		"CAMERA_TOGGLE":   0x2014,
		"AIRPLANE_MODE":   0x2015,
		"TOUCHPAD":        0x2016,
		"FAN_TOGGLE":      0x2017,

		"KBD_TOGGLE": 0x3001,
		"KBD_BKL":    0x3002,
		"KBD_COLOR":  0x3003,
		"KBD_UP":     0x3004,
		"KBD_DOWN":   0x3005,
	}

	for i := 0; i < 26; i++ {
		entries[string(rune('A'+i))] = uint16(0x0004 + i)
	}
	for i := 1; i <= 9; i++ {
		entries[strconv.Itoa(i)] = uint16(0x001E + i - 1)
		entries["NUM_"+strconv.Itoa(i)] = uint16(0x0059 + i - 1)
	}
	entries["0"] = 0x0027
	for i := 1; i <= 12; i++ {
		entries["F"+strconv.Itoa(i)] = uint16(0x003A + i - 1)
	}

	// Momentary layer access and layer switching.
	entries["FN"] = 0x1001
	entries["LAYER_ACCESS_2"] = 0x1002
	entries["LAYER_ACCESS_3"] = 0x1003
	for i := 0; i < 4; i++ {
		entries["LAYER_SWITCH_"+strconv.Itoa(i+1)] = uint16(0x1100 + i)
	}

	km, err := NewKeymap(entries)
	if err != nil {
		panic(err)
	}
	return km
}

// Code returns the scancode for name.
func (km *Keymap) Code(name string) (uint16, bool) {
	code, ok := km.byName[name]
	return code, ok
}

// Name returns the name for code, or its 0xNNNN form when the table has none.
func (km *Keymap) Name(code uint16) string {
	if name, ok := km.byCode[code]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", code)
}

// Parse resolves a scancode written either as a known name or as a number
// (decimal or 0x-prefixed hex).
func (km *Keymap) Parse(s string) (uint16, error) {
	if code, ok := km.Code(s); ok {
		return code, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") || isDigits(s) {
		v, err := strconv.ParseUint(s, 0, 16)
		if err == nil {
			return uint16(v), nil
		}
	}
	return 0, fmt.Errorf("layout: unknown scancode %q", s)
}

// Names returns every known name, sorted.
func (km *Keymap) Names() []string {
	names := make([]string, 0, len(km.byName))
	for name := range km.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
