package api

import (
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/backend"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

// BoardView is the JSON form of a board.
type BoardView struct {
	ID            string              `json:"id"`
	Model         string              `json:"model"`
	DisplayName   string              `json:"display_name"`
	Version       string              `json:"version"`
	Capabilities  layout.Capabilities `json:"capabilities"`
	MaxBrightness int                 `json:"max_brightness"`
	Layers        []LayerView         `json:"layers"`
}

// LayerView is the JSON form of a layer. Absent features are null.
type LayerView struct {
	Index      uint8         `json:"index"`
	Mode       *ModeView     `json:"mode"`
	Brightness *int          `json:"brightness"`
	Color      *keyboard.Rgb `json:"color"`
}

// ModeView names a lighting mode with its speed.
type ModeView struct {
	backend.Mode
	Speed uint8 `json:"speed"`
}

// KeyView is the JSON form of a key. Scancodes are names, one per layer.
type KeyView struct {
	Index      int           `json:"index"`
	Name       string        `json:"name"`
	Row        uint8         `json:"row"`
	Col        uint8         `json:"col"`
	Physical   keyboard.Rect `json:"physical"`
	Background keyboard.Rgb  `json:"background"`
	Leds       []uint8       `json:"leds"`
	Scancodes  []string      `json:"scancodes"`
	Color      *keyboard.Rgb `json:"color"`
}

// Event is pushed to every /api/events subscriber.
type Event struct {
	Event string    `json:"event"`
	Board BoardView `json:"board"`
}

func newBoardView(b *backend.Board) BoardView {
	v := BoardView{
		ID:            b.ID().String(),
		Model:         b.Model(),
		DisplayName:   b.DisplayName(),
		Version:       b.Version(),
		Capabilities:  b.Capabilities(),
		MaxBrightness: b.MaxBrightness(),
		Layers:        []LayerView{},
	}
	for _, l := range b.Layers() {
		lv := LayerView{Index: l.Index}
		if mode, speed, ok := l.Mode(); ok {
			m, known := backend.ModeByIndex(mode)
			if !known {
				m = backend.Mode{Index: mode}
			}
			lv.Mode = &ModeView{Mode: m, Speed: speed}
		}
		if brightness, ok := l.Brightness(); ok {
			lv.Brightness = &brightness
		}
		if color, ok := l.Color(); ok {
			lv.Color = &color
		}
		v.Layers = append(v.Layers, lv)
	}
	return v
}

func newKeyViews(b *backend.Board, km *layout.Keymap) []KeyView {
	keys := b.Keys()
	out := make([]KeyView, 0, len(keys))
	for _, k := range keys {
		kv := KeyView{
			Index:      k.Index,
			Name:       k.Name,
			Row:        k.Row,
			Col:        k.Col,
			Physical:   k.Physical,
			Background: k.Background,
			Leds:       k.Leds,
			Scancodes:  []string{},
		}
		if kv.Leds == nil {
			kv.Leds = []uint8{}
		}
		for _, code := range k.Scancodes() {
			kv.Scancodes = append(kv.Scancodes, km.Name(code))
		}
		if color, ok := k.Color(); ok {
			kv.Color = &color
		}
		out = append(out, kv)
	}
	return out
}
