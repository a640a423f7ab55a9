package daemon

import (
	"errors"
	"testing"
)

func TestEncodeRequest(t *testing.T) {
	tests := []struct {
		name string
		op   string
		args []interface{}
		want string
	}{
		{"no args", OpBoards, nil, `{"op":"boards","args":[]}` + "\n"},
		{"numbers", OpKeymapSet, []interface{}{1, 2, 3, 4, 0x29}, `{"op":"keymap_set","args":[1,2,3,4,41]}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeRequest(tt.op, tt.args...)
			if err != nil {
				t.Fatalf("EncodeRequest returned error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("EncodeRequest = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeReplies(t *testing.T) {
	ok, err := EncodeOK(nil)
	if err != nil || string(ok) != "{\"ok\":null}\n" {
		t.Fatalf("EncodeOK(nil) = %q, %v", ok, err)
	}
	ids, err := EncodeOK([]int{0, 1})
	if err != nil || string(ids) != "{\"ok\":[0,1]}\n" {
		t.Fatalf("EncodeOK(ids) = %q, %v", ids, err)
	}
	msg, err := EncodeErr("board not found")
	if err != nil || string(msg) != "{\"err\":\"board not found\"}\n" {
		t.Fatalf("EncodeErr = %q, %v", msg, err)
	}
}

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    string
		wantErr error
	}{
		{"value", `{"ok":[1,2]}`, `[1,2]`, nil},
		{"null", `{"ok":null}`, `null`, nil},
		{"remote error", `{"err":"no such board"}`, "", ErrProtocol},
		{"remote board gone", `{"err":"daemon: board not found: 3"}`, "", ErrDeviceGone},
		{"remote capability", `{"err":"daemon: capability not supported: ec command 14 failed"}`, "", ErrCapability},
		{"remote not implemented", `{"err":"daemon: not implemented: unknown op \"x\""}`, "", ErrNotImplemented},
		{"not json", `hello`, "", ErrTransport},
		{"neither key", `{"value":1}`, "", ErrTransport},
		{"err not a string", `{"err":5}`, "", ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := DecodeReply([]byte(tt.line + "\n"))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeReply error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeReply returned error: %v", err)
			}
			if string(raw) != tt.want {
				t.Errorf("DecodeReply = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestRemoteErrorKeepsMessage(t *testing.T) {
	_, err := DecodeReply([]byte(`{"err":"ec command 14 failed"}`))
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("error %v is not a *RemoteError", err)
	}
	if remote.Message != "ec command 14 failed" || err.Error() != "ec command 14 failed" {
		t.Fatalf("message = %q", remote.Message)
	}
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"op":"model","args":[3]}`))
	if err != nil {
		t.Fatalf("DecodeRequest returned error: %v", err)
	}
	var board uint64
	if err := decodeArgs(req, &board); err != nil || board != 3 {
		t.Fatalf("decodeArgs = %d, %v", board, err)
	}

	var a, b uint8
	if err := decodeArgs(req, &a, &b); err == nil {
		t.Fatalf("expected argument count error")
	}
	bad, _ := DecodeRequest([]byte(`{"op":"color","args":[0,300]}`))
	if err := decodeArgs(bad, &board, &a); err == nil {
		t.Fatalf("expected range error for 300 as uint8")
	}

	for _, line := range []string{`{"args":[]}`, `[1,2]`, `nope`} {
		if _, err := DecodeRequest([]byte(line)); err == nil {
			t.Errorf("DecodeRequest(%s) expected error", line)
		}
	}
}
