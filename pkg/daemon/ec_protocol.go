package daemon

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

// ECPacketSize is the fixed size of every EC HID report.
const ECPacketSize = 32

// EC command IDs. Byte 0 of a packet is the command, byte 1 the status
// (zero on success) and the arguments start at byte 2.
const (
	CmdProbe       = 1
	CmdBoard       = 2
	CmdVersion     = 3
	CmdKeymapGet   = 9
	CmdKeymapSet   = 10
	CmdLedGetValue = 11
	CmdLedSetValue = 12
	CmdLedGetColor = 13
	CmdLedSetColor = 14
	CmdLedGetMode  = 15
	CmdLedSetMode  = 16
	CmdMatrixGet   = 17
	CmdLedSave     = 18
)

const (
	ecStatusOK = 0x00
	ecArgs     = 2
)

// ECProtocol encodes EC HID requests and decodes their replies.
type ECProtocol struct {
	PacketSize int
}

// NewECProtocol creates a codec for packets of packetSize bytes.
func NewECProtocol(packetSize int) *ECProtocol {
	if packetSize <= 0 {
		packetSize = ECPacketSize
	}
	return &ECProtocol{PacketSize: packetSize}
}

// Encode builds a request packet for cmd.
func (p *ECProtocol) Encode(cmd byte, args ...byte) []byte {
	packet := make([]byte, p.PacketSize)
	packet[0] = cmd
	copy(packet[ecArgs:], args)
	return packet
}

// Decode validates a reply to cmd and returns its argument bytes. A non-zero
// status byte is reported as a *RemoteError matching ErrCapability.
func (p *ECProtocol) Decode(cmd byte, resp []byte) ([]byte, error) {
	if len(resp) < ecArgs {
		return nil, transportError(fmt.Errorf("ec reply too short: %d bytes", len(resp)))
	}
	if resp[0] != cmd {
		return nil, transportError(fmt.Errorf("ec reply for command %d, expected %d", resp[0], cmd))
	}
	if resp[1] != ecStatusOK {
		return nil, &RemoteError{
			Message: fmt.Sprintf("%v: ec command %d failed with status 0x%02X", ErrCapability, cmd, resp[1]),
			Kind:    ErrCapability,
		}
	}
	return resp[ecArgs:], nil
}

func (p *ECProtocol) need(cmd byte, args []byte, n int) error {
	if len(args) < n {
		return transportError(fmt.Errorf("ec reply to command %d has %d argument bytes, need %d", cmd, len(args), n))
	}
	return nil
}

// EncodeString builds a Board or Version request.
func (p *ECProtocol) EncodeString(cmd byte) []byte {
	return p.Encode(cmd)
}

// DecodeString extracts the NUL-terminated string of a Board or Version reply.
func (p *ECProtocol) DecodeString(cmd byte, resp []byte) (string, error) {
	args, err := p.Decode(cmd, resp)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(args, 0); i >= 0 {
		args = args[:i]
	}
	return string(args), nil
}

// EncodeKeymapGet builds a KeymapGet request.
func (p *ECProtocol) EncodeKeymapGet(layer, output, input uint8) []byte {
	return p.Encode(CmdKeymapGet, layer, output, input)
}

// DecodeKeymapGet extracts the little-endian scancode of a KeymapGet reply.
func (p *ECProtocol) DecodeKeymapGet(resp []byte) (uint16, error) {
	args, err := p.Decode(CmdKeymapGet, resp)
	if err != nil {
		return 0, err
	}
	if err := p.need(CmdKeymapGet, args, 5); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(args[3:5]), nil
}

// EncodeKeymapSet builds a KeymapSet request.
func (p *ECProtocol) EncodeKeymapSet(layer, output, input uint8, value uint16) []byte {
	var v [2]byte
	binary.LittleEndian.PutUint16(v[:], value)
	return p.Encode(CmdKeymapSet, layer, output, input, v[0], v[1])
}

// EncodeLedGetValue builds a brightness request for an LED index.
func (p *ECProtocol) EncodeLedGetValue(index uint8) []byte {
	return p.Encode(CmdLedGetValue, index)
}

// DecodeLedGetValue returns the brightness and the maximum brightness.
func (p *ECProtocol) DecodeLedGetValue(resp []byte) (value, maxValue uint8, err error) {
	args, err := p.Decode(CmdLedGetValue, resp)
	if err != nil {
		return 0, 0, err
	}
	if err := p.need(CmdLedGetValue, args, 3); err != nil {
		return 0, 0, err
	}
	return args[1], args[2], nil
}

// EncodeLedSetValue builds a brightness update.
func (p *ECProtocol) EncodeLedSetValue(index, value uint8) []byte {
	return p.Encode(CmdLedSetValue, index, value)
}

// EncodeLedGetColor builds a color request for an LED index.
func (p *ECProtocol) EncodeLedGetColor(index uint8) []byte {
	return p.Encode(CmdLedGetColor, index)
}

// DecodeLedGetColor extracts the color of a LedGetColor reply.
func (p *ECProtocol) DecodeLedGetColor(resp []byte) (keyboard.Rgb, error) {
	args, err := p.Decode(CmdLedGetColor, resp)
	if err != nil {
		return keyboard.Rgb{}, err
	}
	if err := p.need(CmdLedGetColor, args, 4); err != nil {
		return keyboard.Rgb{}, err
	}
	return keyboard.NewRgb(args[1], args[2], args[3]), nil
}

// EncodeLedSetColor builds a color update.
func (p *ECProtocol) EncodeLedSetColor(index uint8, c keyboard.Rgb) []byte {
	return p.Encode(CmdLedSetColor, index, c.R, c.G, c.B)
}

// EncodeLedGetMode builds a mode request for a layer.
func (p *ECProtocol) EncodeLedGetMode(layer uint8) []byte {
	return p.Encode(CmdLedGetMode, layer)
}

// DecodeLedGetMode returns the mode and speed of a LedGetMode reply.
func (p *ECProtocol) DecodeLedGetMode(resp []byte) (mode, speed uint8, err error) {
	args, err := p.Decode(CmdLedGetMode, resp)
	if err != nil {
		return 0, 0, err
	}
	if err := p.need(CmdLedGetMode, args, 3); err != nil {
		return 0, 0, err
	}
	return args[1], args[2], nil
}

// EncodeLedSetMode builds a mode update.
func (p *ECProtocol) EncodeLedSetMode(layer, mode, speed uint8) []byte {
	return p.Encode(CmdLedSetMode, layer, mode, speed)
}

// EncodeMatrixGet builds a matrix request.
func (p *ECProtocol) EncodeMatrixGet() []byte {
	return p.Encode(CmdMatrixGet)
}

// DecodeMatrixGet converts the row-packed matrix of a MatrixGet reply. Each
// row takes (cols+7)/8 bytes with column 0 in the low bit.
func (p *ECProtocol) DecodeMatrixGet(resp []byte) (keyboard.Matrix, error) {
	args, err := p.Decode(CmdMatrixGet, resp)
	if err != nil {
		return keyboard.Matrix{}, err
	}
	if err := p.need(CmdMatrixGet, args, 2); err != nil {
		return keyboard.Matrix{}, err
	}
	rows, cols := int(args[0]), int(args[1])
	rowBytes := (cols + 7) / 8
	if err := p.need(CmdMatrixGet, args, 2+rows*rowBytes); err != nil {
		return keyboard.Matrix{}, err
	}

	m := keyboard.NewMatrix(rows, cols)
	data := args[2:]
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if data[r*rowBytes+c/8]&(1<<(c%8)) != 0 {
				m.Set(r, c, true)
			}
		}
	}
	return m, nil
}

// EncodeMatrix packs m the way DecodeMatrixGet expects.
func EncodeMatrix(m keyboard.Matrix) []byte {
	rowBytes := (m.Cols + 7) / 8
	out := make([]byte, 2+m.Rows*rowBytes)
	out[0], out[1] = byte(m.Rows), byte(m.Cols)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if m.Pressed(r, c) {
				out[2+r*rowBytes+c/8] |= 1 << (c % 8)
			}
		}
	}
	return out
}

// EncodeLedSave builds a request to persist the LED settings.
func (p *ECProtocol) EncodeLedSave() []byte {
	return p.Encode(CmdLedSave)
}
