package daemon

import (
	"bytes"
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

func TestECEncode(t *testing.T) {
	proto := NewECProtocol(ECPacketSize)

	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"probe", proto.Encode(CmdProbe), []byte{CmdProbe, 0}},
		{"keymap get", proto.EncodeKeymapGet(1, 2, 3), []byte{CmdKeymapGet, 0, 1, 2, 3}},
		{"keymap set", proto.EncodeKeymapSet(1, 2, 3, 0x1234), []byte{CmdKeymapSet, 0, 1, 2, 3, 0x34, 0x12}},
		{"led set color", proto.EncodeLedSetColor(0xF1, keyboard.NewRgb(0xAA, 0xBB, 0xCC)), []byte{CmdLedSetColor, 0, 0xF1, 0xAA, 0xBB, 0xCC}},
		{"led set mode", proto.EncodeLedSetMode(2, 7, 128), []byte{CmdLedSetMode, 0, 2, 7, 128}},
		{"led set value", proto.EncodeLedSetValue(0xFF, 100), []byte{CmdLedSetValue, 0, 0xFF, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.got) != ECPacketSize {
				t.Fatalf("packet length = %d, want %d", len(tt.got), ECPacketSize)
			}
			if !bytes.Equal(tt.got[:len(tt.want)], tt.want) {
				t.Errorf("packet = %v, want prefix %v", tt.got[:len(tt.want)], tt.want)
			}
			for _, b := range tt.got[len(tt.want):] {
				if b != 0 {
					t.Fatalf("packet padding not zero: %v", tt.got)
				}
			}
		})
	}
}

func TestECDecode(t *testing.T) {
	proto := NewECProtocol(ECPacketSize)

	tests := []struct {
		name    string
		resp    []byte
		wantErr error
	}{
		{"ok", []byte{CmdProbe, 0, 1, 2}, nil},
		{"too short", []byte{CmdProbe}, ErrTransport},
		{"wrong command", []byte{CmdBoard, 0}, ErrTransport},
		{"status error", []byte{CmdProbe, 0x01}, ErrCapability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := proto.Decode(CmdProbe, tt.resp)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Decode returned error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestECDecodeReplies(t *testing.T) {
	proto := NewECProtocol(ECPacketSize)

	name, err := proto.DecodeString(CmdBoard, append([]byte{CmdBoard, 0}, "system76/launch_1\x00junk"...))
	if err != nil || name != "system76/launch_1" {
		t.Fatalf("DecodeString = %q, %v", name, err)
	}

	code, err := proto.DecodeKeymapGet([]byte{CmdKeymapGet, 0, 1, 2, 3, 0x01, 0x10})
	if err != nil || code != 0x1001 {
		t.Fatalf("DecodeKeymapGet = 0x%04X, %v", code, err)
	}
	if _, err := proto.DecodeKeymapGet([]byte{CmdKeymapGet, 0, 1, 2}); !errors.Is(err, ErrTransport) {
		t.Fatalf("short keymap reply error = %v", err)
	}

	value, maxValue, err := proto.DecodeLedGetValue([]byte{CmdLedGetValue, 0, 0xFF, 80, 255})
	if err != nil || value != 80 || maxValue != 255 {
		t.Fatalf("DecodeLedGetValue = %d, %d, %v", value, maxValue, err)
	}

	color, err := proto.DecodeLedGetColor([]byte{CmdLedGetColor, 0, 3, 0x11, 0x22, 0x33})
	if err != nil || color != keyboard.NewRgb(0x11, 0x22, 0x33) {
		t.Fatalf("DecodeLedGetColor = %v, %v", color, err)
	}

	mode, speed, err := proto.DecodeLedGetMode([]byte{CmdLedGetMode, 0, 1, 4, 9})
	if err != nil || mode != 4 || speed != 9 {
		t.Fatalf("DecodeLedGetMode = %d, %d, %v", mode, speed, err)
	}
}

func TestECMatrixPacking(t *testing.T) {
	m := keyboard.NewMatrix(3, 10)
	m.Set(0, 9, true)
	m.Set(2, 0, true)

	packed := EncodeMatrix(m)
	want := []byte{3, 10, 0x00, 0x02, 0x00, 0x00, 0x01, 0x00}
	if !bytes.Equal(packed, want) {
		t.Fatalf("EncodeMatrix = %v, want %v", packed, want)
	}

	proto := NewECProtocol(ECPacketSize)
	got, err := proto.DecodeMatrixGet(append([]byte{CmdMatrixGet, 0}, packed...))
	if err != nil {
		t.Fatalf("DecodeMatrixGet returned error: %v", err)
	}
	if !bytes.Equal(got.Data, m.Data) || got.Rows != 3 || got.Cols != 10 {
		t.Fatalf("DecodeMatrixGet = %+v, want %+v", got, m)
	}
}
