package daemon

import (
	"encoding/binary"
	"errors"

	"github.com/google/gousb"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

// fakeEC answers EC HID reports the way keyboard firmware does.
type fakeEC struct {
	model   string
	version string
	keymap  map[keyPosition]uint16
	colors  map[uint8]keyboard.Rgb
	values  map[uint8]uint8
	modes   map[uint8]modeSetting
	matrix  keyboard.Matrix
	maxLed  uint8
	failCmd byte
	gone    bool
	closed  bool
	saves   int
}

func newFakeEC(model string) *fakeEC {
	return &fakeEC{
		model:   model,
		version: "1.0-test",
		keymap:  make(map[keyPosition]uint16),
		colors:  make(map[uint8]keyboard.Rgb),
		values:  make(map[uint8]uint8),
		modes:   make(map[uint8]modeSetting),
		matrix:  keyboard.NewMatrix(6, 16),
		maxLed:  200,
	}
}

func (f *fakeEC) WriteRead(p []byte) ([]byte, error) {
	if f.closed {
		return nil, errors.New("fake: closed")
	}
	if f.gone {
		return nil, gousb.ErrorNoDevice
	}
	resp := make([]byte, ECPacketSize)
	copy(resp, p)
	if p[0] == f.failCmd {
		resp[1] = 0x01
		return resp, nil
	}

	switch p[0] {
	case CmdProbe:
	case CmdBoard, CmdVersion:
		for i := 2; i < len(resp); i++ {
			resp[i] = 0
		}
		s := f.model
		if p[0] == CmdVersion {
			s = f.version
		}
		copy(resp[2:], s)
	case CmdKeymapGet:
		binary.LittleEndian.PutUint16(resp[5:], f.keymap[keyPosition{p[2], p[3], p[4]}])
	case CmdKeymapSet:
		f.keymap[keyPosition{p[2], p[3], p[4]}] = binary.LittleEndian.Uint16(p[5:7])
	case CmdLedGetValue:
		resp[3] = f.values[p[2]]
		resp[4] = f.maxLed
	case CmdLedSetValue:
		f.values[p[2]] = p[3]
	case CmdLedGetColor:
		c := f.colors[p[2]]
		resp[3], resp[4], resp[5] = c.R, c.G, c.B
	case CmdLedSetColor:
		f.colors[p[2]] = keyboard.NewRgb(p[3], p[4], p[5])
	case CmdLedGetMode:
		m := f.modes[p[2]]
		resp[3], resp[4] = m.mode, m.speed
	case CmdLedSetMode:
		f.modes[p[2]] = modeSetting{p[3], p[4]}
	case CmdMatrixGet:
		copy(resp[2:], EncodeMatrix(f.matrix))
	case CmdLedSave:
		f.saves++
	default:
		resp[1] = 0xFF
	}
	return resp, nil
}

func (f *fakeEC) Close() error {
	f.closed = true
	return nil
}

// fakeScanner reports a mutable set of fake keyboards.
type fakeScanner struct {
	devices []DeviceInfo
	ecs     map[string]*fakeEC
	openErr map[string]error
	closed  bool
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{
		ecs:     make(map[string]*fakeEC),
		openErr: make(map[string]error),
	}
}

func (s *fakeScanner) attach(bus, address int, ec *fakeEC) DeviceInfo {
	info := DeviceInfo{Bus: bus, Address: address, VendorID: VendorIDSystem76, ProductID: 0x0001, Interface: 1}
	s.devices = append(s.devices, info)
	s.ecs[info.Key()] = ec
	return info
}

func (s *fakeScanner) detach(info DeviceInfo) {
	for i, d := range s.devices {
		if d.Key() == info.Key() {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			break
		}
	}
}

func (s *fakeScanner) Scan() ([]DeviceInfo, error) {
	return append([]DeviceInfo(nil), s.devices...), nil
}

func (s *fakeScanner) Open(info DeviceInfo) (HIDDevice, error) {
	if err := s.openErr[info.Key()]; err != nil {
		return nil, err
	}
	ec := s.ecs[info.Key()]
	ec.closed = false
	return ec, nil
}

func (s *fakeScanner) Close() error {
	s.closed = true
	return nil
}
