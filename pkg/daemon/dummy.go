package daemon

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

const (
	dummyVersion       = "dummy"
	dummyMatrixRows    = 6
	dummyMatrixCols    = 16
	dummyMaxBrightness = 255
)

type keyPosition struct {
	layer, output, input uint8
}

type modeSetting struct {
	mode, speed uint8
}

type dummyBoard struct {
	model      string
	keymap     map[keyPosition]uint16
	colors     map[uint8]keyboard.Rgb
	brightness map[uint8]int
	modes      map[uint8]modeSetting
	matrix     keyboard.Matrix
}

func newDummyBoard(model string) *dummyBoard {
	return &dummyBoard{
		model:      model,
		keymap:     make(map[keyPosition]uint16),
		colors:     make(map[uint8]keyboard.Rgb),
		brightness: make(map[uint8]int),
		modes:      make(map[uint8]modeSetting),
		matrix:     keyboard.NewMatrix(dummyMatrixRows, dummyMatrixCols),
	}
}

// Dummy is an in-memory daemon for demos and tests. Setters are recorded so
// later getters observe them. Dummy is not safe for concurrent use.
type Dummy struct {
	boards map[keyboard.BoardID]*dummyBoard
	order  []keyboard.BoardID
	nextID keyboard.BoardID
}

// NewDummy returns a daemon reporting one board per model, with ids 0..n-1.
func NewDummy(models []string) *Dummy {
	d := &Dummy{boards: make(map[keyboard.BoardID]*dummyBoard)}
	for _, m := range models {
		d.AddBoard(m)
	}
	return d
}

// AddBoard attaches a new board and returns its id. Ids are never reused.
func (d *Dummy) AddBoard(model string) keyboard.BoardID {
	id := d.nextID
	d.nextID++
	d.boards[id] = newDummyBoard(model)
	d.order = append(d.order, id)
	return id
}

// RemoveBoard detaches a board. It reports whether the board existed.
func (d *Dummy) RemoveBoard(id keyboard.BoardID) bool {
	if _, ok := d.boards[id]; !ok {
		return false
	}
	delete(d.boards, id)
	for i, o := range d.order {
		if o == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// SetPressed marks a matrix position as pressed or released.
func (d *Dummy) SetPressed(id keyboard.BoardID, row, col int, pressed bool) error {
	b, err := d.board(id)
	if err != nil {
		return err
	}
	if row < 0 || row >= b.matrix.Rows || col < 0 || col >= b.matrix.Cols {
		return fmt.Errorf("daemon: matrix position %d,%d out of range", row, col)
	}
	b.matrix.Set(row, col, pressed)
	return nil
}

func (d *Dummy) board(id keyboard.BoardID) (*dummyBoard, error) {
	b, ok := d.boards[id]
	if !ok {
		return nil, deviceGone(id)
	}
	return b, nil
}

func (d *Dummy) Refresh() error {
	return nil
}

func (d *Dummy) Boards() ([]keyboard.BoardID, error) {
	return append([]keyboard.BoardID(nil), d.order...), nil
}

func (d *Dummy) Model(id keyboard.BoardID) (string, error) {
	b, err := d.board(id)
	if err != nil {
		return "", err
	}
	return b.model, nil
}

func (d *Dummy) Version(id keyboard.BoardID) (string, error) {
	if _, err := d.board(id); err != nil {
		return "", err
	}
	return dummyVersion, nil
}

func (d *Dummy) KeymapGet(id keyboard.BoardID, layer, output, input uint8) (uint16, error) {
	b, err := d.board(id)
	if err != nil {
		return 0, err
	}
	return b.keymap[keyPosition{layer, output, input}], nil
}

func (d *Dummy) KeymapSet(id keyboard.BoardID, layer, output, input uint8, value uint16) error {
	b, err := d.board(id)
	if err != nil {
		return err
	}
	b.keymap[keyPosition{layer, output, input}] = value
	return nil
}

func (d *Dummy) MatrixGet(id keyboard.BoardID) (keyboard.Matrix, error) {
	b, err := d.board(id)
	if err != nil {
		return keyboard.Matrix{}, err
	}
	m := b.matrix
	m.Data = append([]byte(nil), b.matrix.Data...)
	return m, nil
}

func (d *Dummy) Color(id keyboard.BoardID, index uint8) (keyboard.Rgb, error) {
	b, err := d.board(id)
	if err != nil {
		return keyboard.Rgb{}, err
	}
	return b.colors[index], nil
}

func (d *Dummy) SetColor(id keyboard.BoardID, index uint8, color keyboard.Rgb) error {
	b, err := d.board(id)
	if err != nil {
		return err
	}
	b.colors[index] = color
	return nil
}

func (d *Dummy) MaxBrightness(id keyboard.BoardID) (int, error) {
	if _, err := d.board(id); err != nil {
		return 0, err
	}
	return dummyMaxBrightness, nil
}

func (d *Dummy) Brightness(id keyboard.BoardID, index uint8) (int, error) {
	b, err := d.board(id)
	if err != nil {
		return 0, err
	}
	return b.brightness[index], nil
}

func (d *Dummy) SetBrightness(id keyboard.BoardID, index uint8, value int) error {
	b, err := d.board(id)
	if err != nil {
		return err
	}
	if value < 0 || value > dummyMaxBrightness {
		return fmt.Errorf("daemon: brightness %d out of range 0..%d", value, dummyMaxBrightness)
	}
	b.brightness[index] = value
	return nil
}

func (d *Dummy) Mode(id keyboard.BoardID, layer uint8) (uint8, uint8, error) {
	b, err := d.board(id)
	if err != nil {
		return 0, 0, err
	}
	m := b.modes[layer]
	return m.mode, m.speed, nil
}

func (d *Dummy) SetMode(id keyboard.BoardID, layer, mode, speed uint8) error {
	b, err := d.board(id)
	if err != nil {
		return err
	}
	b.modes[layer] = modeSetting{mode, speed}
	return nil
}

func (d *Dummy) LedSave(id keyboard.BoardID) error {
	_, err := d.board(id)
	return err
}

var _ Daemon = (*Dummy)(nil)
