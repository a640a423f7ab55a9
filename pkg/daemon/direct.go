package daemon

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceKeyboard/internal/logger"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

type directBoard struct {
	info DeviceInfo
	dev  HIDDevice
}

// Direct talks to keyboards over USB HID from the current process. It needs
// permission to open the devices, which usually means running as the
// privileged end of a Client.
type Direct struct {
	scanner  Scanner
	protocol *ECProtocol
	log      *zap.SugaredLogger

	boards map[keyboard.BoardID]*directBoard
	byKey  map[string]keyboard.BoardID
	nextID keyboard.BoardID

	mu sync.Mutex
}

// NewDirect scans the USB bus for keyboards. It fails when the process is
// not allowed to open one of them.
func NewDirect(log *zap.SugaredLogger) (*Direct, error) {
	scanner := NewUSBScanner()
	d, err := NewDirectWithScanner(scanner, log)
	if err != nil {
		scanner.Close()
		return nil, err
	}
	return d, nil
}

// NewDirectWithScanner builds a Direct daemon on top of any device scanner.
func NewDirectWithScanner(scanner Scanner, log *zap.SugaredLogger) (*Direct, error) {
	log = logger.Nop(log)
	d := &Direct{
		scanner:  scanner,
		protocol: NewECProtocol(ECPacketSize),
		log:      log,
		boards:   make(map[keyboard.BoardID]*directBoard),
		byKey:    make(map[string]keyboard.BoardID),
	}
	if err := d.Refresh(); err != nil {
		d.closeBoards()
		return nil, fmt.Errorf("daemon: initial scan: %w", err)
	}
	return d, nil
}

// Refresh re-enumerates the bus. Boards that are still attached keep their
// ids; new boards get fresh ones.
func (d *Direct) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Enumerate candidate devices
	found, err := d.scanner.Scan()
	if err != nil {
		return transportError(fmt.Errorf("scan: %v", err))
	}

	present := make(map[string]bool, len(found))
	var firstErr error
	for _, info := range found {
		key := info.Key()
		present[key] = true
		// Already attached boards keep their id
		if _, ok := d.byKey[key]; ok {
			continue
		}

		dev, err := d.scanner.Open(info)
		if err != nil {
			if errors.Is(err, gousb.ErrorAccess) && firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrTransport, err)
			}
			d.log.Warnw("Failed to open keyboard", "device", info.Label(), "error", err)
			continue
		}
		// Only keep devices that answer CmdProbe
		resp, err := dev.WriteRead(d.protocol.Encode(CmdProbe))
		if err == nil {
			_, err = d.protocol.Decode(CmdProbe, resp)
		}
		if err != nil {
			d.log.Warnw("Keyboard did not answer probe", "device", info.Label(), "error", err)
			dev.Close()
			continue
		}

		id := d.nextID
		d.nextID++
		d.boards[id] = &directBoard{info: info, dev: dev}
		d.byKey[key] = id
		d.log.Debugw("Keyboard attached", "board", id, "device", info.Label())
	}

	// Drop boards that left the bus
	for key, id := range d.byKey {
		if present[key] {
			continue
		}
		d.log.Debugw("Keyboard detached", "board", id)
		d.boards[id].dev.Close()
		delete(d.boards, id)
		delete(d.byKey, key)
	}
	return firstErr
}

func (d *Direct) Boards() ([]keyboard.BoardID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]keyboard.BoardID, 0, len(d.boards))
	for id := range d.boards {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close releases every open keyboard and the scanner.
func (d *Direct) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeBoards()
	return d.scanner.Close()
}

func (d *Direct) closeBoards() {
	for id, b := range d.boards {
		b.dev.Close()
		delete(d.boards, id)
	}
	d.byKey = make(map[string]keyboard.BoardID)
}

// command runs one request/reply exchange with a board.
func (d *Direct) command(id keyboard.BoardID, packet []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.boards[id]
	if !ok {
		return nil, deviceGone(id)
	}
	// One exchange at a time per daemon
	resp, err := b.dev.WriteRead(packet)
	if err != nil {
		return nil, usbError(id, err)
	}
	return resp, nil
}

// usbError reports an unplugged board as ErrDeviceGone and any other USB
// failure as ErrTransport.
func usbError(id keyboard.BoardID, err error) error {
	if errors.Is(err, gousb.ErrorNoDevice) || errors.Is(err, gousb.TransferNoDevice) {
		return fmt.Errorf("%w: %s: %v", ErrDeviceGone, id, err)
	}
	return fmt.Errorf("%w: board %s: %v", ErrTransport, id, err)
}

func (d *Direct) Model(id keyboard.BoardID) (string, error) {
	resp, err := d.command(id, d.protocol.EncodeString(CmdBoard))
	if err != nil {
		return "", err
	}
	return d.protocol.DecodeString(CmdBoard, resp)
}

func (d *Direct) Version(id keyboard.BoardID) (string, error) {
	resp, err := d.command(id, d.protocol.EncodeString(CmdVersion))
	if err != nil {
		return "", err
	}
	return d.protocol.DecodeString(CmdVersion, resp)
}

func (d *Direct) KeymapGet(id keyboard.BoardID, layer, output, input uint8) (uint16, error) {
	resp, err := d.command(id, d.protocol.EncodeKeymapGet(layer, output, input))
	if err != nil {
		return 0, err
	}
	return d.protocol.DecodeKeymapGet(resp)
}

func (d *Direct) KeymapSet(id keyboard.BoardID, layer, output, input uint8, value uint16) error {
	return d.exec(id, CmdKeymapSet, d.protocol.EncodeKeymapSet(layer, output, input, value))
}

func (d *Direct) MatrixGet(id keyboard.BoardID) (keyboard.Matrix, error) {
	resp, err := d.command(id, d.protocol.EncodeMatrixGet())
	if err != nil {
		return keyboard.Matrix{}, err
	}
	return d.protocol.DecodeMatrixGet(resp)
}

func (d *Direct) Color(id keyboard.BoardID, index uint8) (keyboard.Rgb, error) {
	resp, err := d.command(id, d.protocol.EncodeLedGetColor(index))
	if err != nil {
		return keyboard.Rgb{}, err
	}
	return d.protocol.DecodeLedGetColor(resp)
}

func (d *Direct) SetColor(id keyboard.BoardID, index uint8, color keyboard.Rgb) error {
	return d.exec(id, CmdLedSetColor, d.protocol.EncodeLedSetColor(index, color))
}

func (d *Direct) MaxBrightness(id keyboard.BoardID) (int, error) {
	resp, err := d.command(id, d.protocol.EncodeLedGetValue(LedAll))
	if err != nil {
		return 0, err
	}
	_, maxValue, err := d.protocol.DecodeLedGetValue(resp)
	return int(maxValue), err
}

func (d *Direct) Brightness(id keyboard.BoardID, index uint8) (int, error) {
	resp, err := d.command(id, d.protocol.EncodeLedGetValue(index))
	if err != nil {
		return 0, err
	}
	value, _, err := d.protocol.DecodeLedGetValue(resp)
	return int(value), err
}

func (d *Direct) SetBrightness(id keyboard.BoardID, index uint8, value int) error {
	if value < 0 || value > 0xFF {
		return fmt.Errorf("daemon: brightness %d out of range 0..255", value)
	}
	return d.exec(id, CmdLedSetValue, d.protocol.EncodeLedSetValue(index, uint8(value)))
}

func (d *Direct) Mode(id keyboard.BoardID, layer uint8) (uint8, uint8, error) {
	resp, err := d.command(id, d.protocol.EncodeLedGetMode(layer))
	if err != nil {
		return 0, 0, err
	}
	return d.protocol.DecodeLedGetMode(resp)
}

func (d *Direct) SetMode(id keyboard.BoardID, layer, mode, speed uint8) error {
	return d.exec(id, CmdLedSetMode, d.protocol.EncodeLedSetMode(layer, mode, speed))
}

func (d *Direct) LedSave(id keyboard.BoardID) error {
	return d.exec(id, CmdLedSave, d.protocol.EncodeLedSave())
}

// exec runs a command whose reply carries only a status.
func (d *Direct) exec(id keyboard.BoardID, cmd byte, packet []byte) error {
	resp, err := d.command(id, packet)
	if err != nil {
		return err
	}
	_, err = d.protocol.Decode(cmd, resp)
	return err
}

var _ Daemon = (*Direct)(nil)
