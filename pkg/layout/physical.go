// Package layout decodes the static description of a keyboard model: the
// KLE-style physical geometry, the per-model capability metadata and the LED
// map, plus the table of well-known scancode names.
package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

// DefaultBackground is the key color used until a "c" mutation changes it.
var DefaultBackground = keyboard.NewRgb(0xCC, 0xCC, 0xCC)

// Meta names a physical layout.
type Meta struct {
	Name   string `json:"name" yaml:"name"`
	Author string `json:"author" yaml:"author"`
}

// Key is one key of a physical layout. Row and Col are the electrical matrix
// coordinates used to address the key through the daemon.
type Key struct {
	Row        uint8         `json:"row" yaml:"row"`
	Col        uint8         `json:"col" yaml:"col"`
	Physical   keyboard.Rect `json:"physical" yaml:"physical"`
	Name       string        `json:"name" yaml:"name"`
	Background keyboard.Rgb  `json:"background" yaml:"background"`
}

// Logical returns the (row, column) pair.
func (k Key) Logical() (uint8, uint8) {
	return k.Row, k.Col
}

// Physical is a parsed physical layout. Rows are contiguous from 0 in parse
// order, and so are the columns within each row.
type Physical struct {
	Meta Meta  `json:"meta" yaml:"meta"`
	Keys []Key `json:"keys" yaml:"keys"`
}

// ParseError reports a malformed layout document or color.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("layout: %s: %v", e.Msg, e.Err)
	}
	return "layout: " + e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErrorf(err error, format string, args ...interface{}) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// keyMeta is a cursor mutation inside a row. Unknown fields are ignored.
type keyMeta struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	W *float64 `json:"w"`
	H *float64 `json:"h"`
	C *string  `json:"c"`
}

type metaJSON struct {
	Name   *string `json:"name"`
	Author *string `json:"author"`
}

// cursor tracks the parse position in key units.
type cursor struct {
	x, y, w, h float64
	background keyboard.Rgb
}

func newCursor() cursor {
	return cursor{w: 1, h: 1, background: DefaultBackground}
}

func (c *cursor) apply(m keyMeta) error {
	c.x += m.X
	c.y -= m.Y
	if m.W != nil {
		c.w = *m.W
	}
	if m.H != nil {
		c.h = *m.H
	}
	if m.C != nil {
		color, err := keyboard.ParseRgb(strings.TrimPrefix(*m.C, "#"))
		if err != nil || !strings.HasPrefix(*m.C, "#") {
			return parseErrorf(err, "failed to parse color %q", *m.C)
		}
		c.background = color
	}
	return nil
}

func (c *cursor) rect() keyboard.Rect {
	return keyboard.NewRect(c.x, c.y, c.w, c.h)
}

// advance moves past an emitted key; width and height are one-shot.
func (c *cursor) advance() {
	c.x += c.w
	c.w = 1
	c.h = 1
}

func (c *cursor) nextRow() {
	c.x = 0
	c.y -= 1
}

// ParsePhysical decodes a KLE "rows" document.
func ParsePhysical(data []byte) (*Physical, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, parseErrorf(err, "physical layout must be a JSON array")
	}

	var (
		meta *Meta
		keys []Key
		row  int
	)
	cur := newCursor()

	for i, raw := range entries {
		switch firstByte(raw) {
		case '{':
			var m metaJSON
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, parseErrorf(err, "entry %d: invalid meta object", i)
			}
			if m.Name == nil || m.Author == nil {
				return nil, parseErrorf(nil, "entry %d: meta object needs name and author", i)
			}
			meta = &Meta{Name: *m.Name, Author: *m.Author}
		case '[':
			if row > 0xFF {
				return nil, parseErrorf(nil, "too many rows")
			}
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, parseErrorf(err, "entry %d: invalid row", i)
			}
			col := 0
			for j, item := range items {
				switch firstByte(item) {
				case '"':
					if col > 0xFF {
						return nil, parseErrorf(nil, "row %d: too many keys", row)
					}
					var name string
					if err := json.Unmarshal(item, &name); err != nil {
						return nil, parseErrorf(err, "row %d item %d: invalid key name", row, j)
					}
					keys = append(keys, Key{
						Row:        uint8(row),
						Col:        uint8(col),
						Physical:   cur.rect(),
						Name:       name,
						Background: cur.background,
					})
					cur.advance()
					col++
				case '{':
					var km keyMeta
					if err := json.Unmarshal(item, &km); err != nil {
						return nil, parseErrorf(err, "row %d item %d: invalid key metadata", row, j)
					}
					if err := cur.apply(km); err != nil {
						return nil, err
					}
				default:
					return nil, parseErrorf(nil, "row %d item %d: expected string or object", row, j)
				}
			}
			cur.nextRow()
			row++
		default:
			return nil, parseErrorf(nil, "entry %d: expected object or array", i)
		}
	}

	if meta == nil {
		return nil, parseErrorf(nil, "no layout meta")
	}

	return &Physical{Meta: *meta, Keys: keys}, nil
}

// Validate reports physical names that the scancode table does not know.
func (p *Physical) Validate(km *Keymap) error {
	var unknown []string
	for _, k := range p.Keys {
		if _, ok := km.Code(k.Name); !ok {
			unknown = append(unknown, k.Name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("layout %q: unknown key names: %s", p.Meta.Name, strings.Join(unknown, ", "))
	}
	return nil
}

// Rows returns the number of rows in the layout.
func (p *Physical) Rows() int {
	rows := 0
	for _, k := range p.Keys {
		if int(k.Row)+1 > rows {
			rows = int(k.Row) + 1
		}
	}
	return rows
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
