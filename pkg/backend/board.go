package backend

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceKeyboard/internal/logger"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/daemon"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

// Board is an attached keyboard with its layout and a cache of the state
// read from the daemon. Setters write through the daemon and touch the cache
// only when the daemon accepted the change. A Board is not safe for
// concurrent use.
type Board struct {
	daemon daemon.Daemon
	log    *zap.SugaredLogger

	id            keyboard.BoardID
	model         string
	version       string
	layout        *layout.Layout
	caps          layout.Capabilities
	maxBrightness int

	keys      []*Key
	byName    map[string]*Key
	byLogical map[[2]uint8]*Key
	layers    []*Layer
}

// NewBoard reads everything about board id from d. Missing lighting
// features reduce the board's capabilities; any other failure fails the
// board.
func NewBoard(d daemon.Daemon, repo *layout.Repository, id keyboard.BoardID, log *zap.SugaredLogger) (*Board, error) {
	log = logger.Nop(log)

	model, err := d.Model(id)
	if err != nil {
		return nil, fmt.Errorf("board %s: read model: %w", id, err)
	}
	l, err := repo.Lookup(model)
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", id, err)
	}
	version, err := d.Version(id)
	if err != nil {
		return nil, fmt.Errorf("board %s: read version: %w", id, err)
	}

	b := &Board{
		daemon:    d,
		log:       log.With("board", id, "model", l.Model),
		id:        id,
		model:     model,
		version:   version,
		layout:    l,
		caps:      l.Capabilities,
		byName:    make(map[string]*Key),
		byLogical: make(map[[2]uint8]*Key),
	}
	if b.caps.Layers > 0xFF {
		return nil, fmt.Errorf("board %s: %d layers exceeds the firmware limit", id, b.caps.Layers)
	}

	if b.caps.HasBrightness {
		maxBrightness, err := d.MaxBrightness(id)
		if err != nil {
			b.log.Warnw("Brightness unavailable", "error", err)
			b.caps.HasBrightness = false
		} else {
			b.maxBrightness = maxBrightness
		}
	}

	if err := b.loadKeys(); err != nil {
		return nil, err
	}
	if err := b.loadLayers(); err != nil {
		return nil, err
	}
	if err := b.loadKeyColors(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) loadKeys() error {
	for i, pk := range b.layout.Physical.Keys {
		k := &Key{
			Key:       pk,
			Index:     i,
			Leds:      append([]uint8(nil), b.layout.Leds[pk.Name]...),
			scancodes: make([]uint16, b.caps.Layers),
		}
		for layer := range k.scancodes {
			code, err := b.daemon.KeymapGet(b.id, uint8(layer), pk.Row, pk.Col)
			if err != nil {
				return fmt.Errorf("board %s: read keymap of %s on layer %d: %w", b.id, pk.Name, layer, err)
			}
			k.scancodes[layer] = code
		}
		b.keys = append(b.keys, k)
		if _, dup := b.byName[pk.Name]; !dup {
			b.byName[pk.Name] = k
		}
		row, col := pk.Logical()
		b.byLogical[[2]uint8{row, col}] = k
	}
	return nil
}

func (b *Board) loadLayers() error {
	for i := 0; i < b.caps.Layers; i++ {
		layer := &Layer{Index: uint8(i)}
		b.layers = append(b.layers, layer)

		if b.caps.HasMode {
			mode, speed, err := b.daemon.Mode(b.id, layer.Index)
			if err != nil {
				if fatal := b.reduce(err, "mode", &b.caps.HasMode); fatal != nil {
					return fatal
				}
			} else {
				layer.mode, layer.speed, layer.hasMode = mode, speed, true
			}
		}
		if b.caps.HasBrightness {
			value, err := b.daemon.Brightness(b.id, daemon.LayerIndex(layer.Index))
			if err != nil {
				if fatal := b.reduce(err, "brightness", &b.caps.HasBrightness); fatal != nil {
					return fatal
				}
			} else {
				layer.brightness, layer.hasBrightness = value, true
			}
		}
		if b.caps.HasColor {
			color, err := b.daemon.Color(b.id, daemon.LayerIndex(layer.Index))
			if err != nil {
				if fatal := b.reduce(err, "color", &b.caps.HasColor); fatal != nil {
					return fatal
				}
			} else {
				layer.color, layer.hasColor = color, true
			}
		}
	}

	// A feature dropped on a later layer is dropped for the whole board.
	for _, layer := range b.layers {
		layer.hasMode = layer.hasMode && b.caps.HasMode
		layer.hasBrightness = layer.hasBrightness && b.caps.HasBrightness
		layer.hasColor = layer.hasColor && b.caps.HasColor
	}
	return nil
}

func (b *Board) loadKeyColors() error {
	if !b.caps.PerKeyColor {
		return nil
	}
	for _, k := range b.keys {
		if len(k.Leds) == 0 {
			continue
		}
		color, err := b.daemon.Color(b.id, k.Leds[0])
		if err != nil {
			if fatal := b.reduce(err, "per-key color", &b.caps.PerKeyColor); fatal != nil {
				return fatal
			}
			break
		}
		k.color, k.hasColor = color, true
	}
	if !b.caps.PerKeyColor {
		for _, k := range b.keys {
			k.hasColor = false
		}
	}
	return nil
}

// reduce clears feature when err says the board lacks it and returns any
// other error. A board that went away is never reduced.
func (b *Board) reduce(err error, feature string, flag *bool) error {
	if !errors.Is(err, daemon.ErrDeviceGone) && isCapabilityError(err) {
		b.log.Warnw("Lighting feature unavailable", "feature", feature, "error", err)
		*flag = false
		return nil
	}
	return fmt.Errorf("board %s: read %s: %w", b.id, feature, err)
}

// isCapabilityError reports errors that mean "not supported". Firmware status
// replies match ErrCapability.
func isCapabilityError(err error) bool {
	return errors.Is(err, daemon.ErrCapability) ||
		errors.Is(err, daemon.ErrNotImplemented)
}

// ErrInvalidValue is returned by setters given a value the board can never
// accept, such as a brightness above MaxBrightness.
var ErrInvalidValue = errors.New("backend: invalid value")

func capabilityErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", daemon.ErrCapability, fmt.Sprintf(format, args...))
}

// ID returns the daemon's id for the board.
func (b *Board) ID() keyboard.BoardID { return b.id }

// Model returns the model string reported by the daemon.
func (b *Board) Model() string { return b.model }

// Version returns the firmware version.
func (b *Board) Version() string { return b.version }

// Layout returns the static layout of the board's model.
func (b *Board) Layout() *layout.Layout { return b.layout }

// Capabilities returns the features that the board actually answered for.
func (b *Board) Capabilities() layout.Capabilities { return b.caps }

// DisplayName returns a human-readable model name.
func (b *Board) DisplayName() string { return b.caps.DisplayName }

// MaxBrightness returns the largest brightness value, or zero without
// brightness control.
func (b *Board) MaxBrightness() int { return b.maxBrightness }

// Keys returns the keys in layout order.
func (b *Board) Keys() []*Key {
	out := make([]*Key, len(b.keys))
	copy(out, b.keys)
	return out
}

// KeyByName returns the first key with the given physical name.
func (b *Board) KeyByName(name string) (*Key, bool) {
	k, ok := b.byName[name]
	return k, ok
}

// KeyByLogical returns the key at a matrix position.
func (b *Board) KeyByLogical(row, col uint8) (*Key, bool) {
	k, ok := b.byLogical[[2]uint8{row, col}]
	return k, ok
}

// Layers returns the layers in index order.
func (b *Board) Layers() []*Layer {
	out := make([]*Layer, len(b.layers))
	copy(out, b.layers)
	return out
}

// Layer returns one layer.
func (b *Board) Layer(index int) (*Layer, bool) {
	if index < 0 || index >= len(b.layers) {
		return nil, false
	}
	return b.layers[index], true
}

// Scancode returns the cached binding of k on layer.
func (b *Board) Scancode(k *Key, layer int) (uint16, bool) {
	if !b.owns(k) {
		return 0, false
	}
	return k.Scancode(layer)
}

func (b *Board) owns(k *Key) bool {
	return k != nil && k.Index >= 0 && k.Index < len(b.keys) && b.keys[k.Index] == k
}

func (b *Board) layer(index int) (*Layer, error) {
	l, ok := b.Layer(index)
	if !ok {
		return nil, capabilityErrorf("board %s has no layer %d", b.id, index)
	}
	return l, nil
}

// SetScancode binds k to code on layer.
func (b *Board) SetScancode(k *Key, layer int, code uint16) error {
	if !b.owns(k) {
		return fmt.Errorf("%w: board %s: key does not belong to this board", ErrInvalidValue, b.id)
	}
	if _, err := b.layer(layer); err != nil {
		return err
	}
	if err := b.daemon.KeymapSet(b.id, uint8(layer), k.Row, k.Col, code); err != nil {
		return fmt.Errorf("board %s: set %s on layer %d: %w", b.id, k.Name, layer, err)
	}
	k.scancodes[layer] = code
	return nil
}

// SetKeyColor sets the color of every LED under k.
func (b *Board) SetKeyColor(k *Key, color keyboard.Rgb) error {
	if !b.owns(k) {
		return fmt.Errorf("%w: board %s: key does not belong to this board", ErrInvalidValue, b.id)
	}
	if !b.caps.PerKeyColor || len(k.Leds) == 0 {
		return capabilityErrorf("key %s on board %s has no color of its own", k.Name, b.id)
	}
	for _, led := range k.Leds {
		if err := b.daemon.SetColor(b.id, led, color); err != nil {
			return fmt.Errorf("board %s: set color of %s: %w", b.id, k.Name, err)
		}
	}
	k.color, k.hasColor = color, true
	return nil
}

// SetLayerColor sets the color of a whole layer.
func (b *Board) SetLayerColor(index int, color keyboard.Rgb) error {
	l, err := b.layer(index)
	if err != nil {
		return err
	}
	if !b.caps.HasColor {
		return capabilityErrorf("board %s has no color control", b.id)
	}
	if err := b.daemon.SetColor(b.id, daemon.LayerIndex(l.Index), color); err != nil {
		return fmt.Errorf("board %s: set color of layer %d: %w", b.id, index, err)
	}
	l.color, l.hasColor = color, true
	return nil
}

// SetLayerBrightness sets the brightness of a layer, from 0 to
// MaxBrightness.
func (b *Board) SetLayerBrightness(index int, value int) error {
	l, err := b.layer(index)
	if err != nil {
		return err
	}
	if !b.caps.HasBrightness {
		return capabilityErrorf("board %s has no brightness control", b.id)
	}
	if value < 0 || value > b.maxBrightness {
		return fmt.Errorf("%w: board %s: brightness %d out of range 0..%d", ErrInvalidValue, b.id, value, b.maxBrightness)
	}
	if err := b.daemon.SetBrightness(b.id, daemon.LayerIndex(l.Index), value); err != nil {
		return fmt.Errorf("board %s: set brightness of layer %d: %w", b.id, index, err)
	}
	l.brightness, l.hasBrightness = value, true
	return nil
}

// SetLayerMode selects the lighting effect of a layer.
func (b *Board) SetLayerMode(index int, mode, speed uint8) error {
	l, err := b.layer(index)
	if err != nil {
		return err
	}
	if !b.caps.HasMode {
		return capabilityErrorf("board %s has no lighting modes", b.id)
	}
	if _, ok := ModeByIndex(mode); !ok {
		return fmt.Errorf("%w: board %s: unknown lighting mode %d", ErrInvalidValue, b.id, mode)
	}
	if err := b.daemon.SetMode(b.id, l.Index, mode, speed); err != nil {
		return fmt.Errorf("board %s: set mode of layer %d: %w", b.id, index, err)
	}
	l.mode, l.speed, l.hasMode = mode, speed, true
	return nil
}

// Save asks the firmware to persist the current lighting settings.
func (b *Board) Save() error {
	if err := b.daemon.LedSave(b.id); err != nil {
		return fmt.Errorf("board %s: save lighting: %w", b.id, err)
	}
	return nil
}

// Matrix reads the live key matrix.
func (b *Board) Matrix() (keyboard.Matrix, error) {
	m, err := b.daemon.MatrixGet(b.id)
	if err != nil {
		return keyboard.Matrix{}, fmt.Errorf("board %s: read matrix: %w", b.id, err)
	}
	return m, nil
}

// PressedKeys returns the keys that are currently held down.
func (b *Board) PressedKeys() ([]*Key, error) {
	m, err := b.Matrix()
	if err != nil {
		return nil, err
	}
	var pressed []*Key
	for _, k := range b.keys {
		if int(k.Row) < m.Rows && int(k.Col) < m.Cols && m.Pressed(int(k.Row), int(k.Col)) {
			pressed = append(pressed, k)
		}
	}
	return pressed, nil
}
