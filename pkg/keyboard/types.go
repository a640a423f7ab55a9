// Package keyboard holds the value types shared by the layout parser, the
// daemon transports and the board model.
package keyboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// BoardID identifies one attached keyboard for as long as it stays attached.
type BoardID uint64

func (id BoardID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseBoardID parses the decimal form produced by String.
func ParseBoardID(s string) (BoardID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("keyboard: invalid board id %q", s)
	}
	return BoardID(v), nil
}

// Rect is a rectangle in key units.
type Rect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// NewRect builds a Rect from its components.
func NewRect(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Matrix is a snapshot of the electrical key matrix. Bit (row*Cols + col) of
// Data is set while that switch is held.
type Matrix struct {
	Rows int
	Cols int
	Data []byte
}

// NewMatrix allocates an all-released matrix.
func NewMatrix(rows, cols int) Matrix {
	return Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]byte, (rows*cols+7)/8),
	}
}

// Pressed reports whether the switch at (row, col) is held.
func (m Matrix) Pressed(row, col int) bool {
	if row < 0 || col < 0 || row >= m.Rows || col >= m.Cols {
		return false
	}
	bit := row*m.Cols + col
	if bit/8 >= len(m.Data) {
		return false
	}
	return m.Data[bit/8]&(1<<(bit%8)) != 0
}

// Set marks the switch at (row, col) as held or released.
func (m Matrix) Set(row, col int, pressed bool) {
	if row < 0 || col < 0 || row >= m.Rows || col >= m.Cols {
		return
	}
	bit := row*m.Cols + col
	if bit/8 >= len(m.Data) {
		return
	}
	if pressed {
		m.Data[bit/8] |= 1 << (bit % 8)
	} else {
		m.Data[bit/8] &^= 1 << (bit % 8)
	}
}

type matrixJSON struct {
	Rows int   `json:"rows"`
	Cols int   `json:"cols"`
	Data []int `json:"data"`
}

// MarshalJSON encodes Data as an array of integers rather than base64.
func (m Matrix) MarshalJSON() ([]byte, error) {
	out := matrixJSON{Rows: m.Rows, Cols: m.Cols, Data: make([]int, len(m.Data))}
	for i, b := range m.Data {
		out.Data[i] = int(b)
	}
	return json.Marshal(out)
}

func (m *Matrix) UnmarshalJSON(data []byte) error {
	var in matrixJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	buf := make([]byte, len(in.Data))
	for i, v := range in.Data {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("keyboard: matrix byte %d out of range", v)
		}
		buf[i] = byte(v)
	}
	*m = Matrix{Rows: in.Rows, Cols: in.Cols, Data: buf}
	return nil
}
