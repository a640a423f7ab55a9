package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Operation names of the line protocol spoken between Client and Server.
const (
	OpRefresh       = "refresh"
	OpBoards        = "boards"
	OpModel         = "model"
	OpVersion       = "version"
	OpKeymapGet     = "keymap_get"
	OpKeymapSet     = "keymap_set"
	OpMatrixGet     = "matrix_get"
	OpColor         = "color"
	OpSetColor      = "set_color"
	OpMaxBrightness = "max_brightness"
	OpBrightness    = "brightness"
	OpSetBrightness = "set_brightness"
	OpMode          = "mode"
	OpSetMode       = "set_mode"
	OpLedSave       = "led_save"
)

// Request is one protocol request line.
type Request struct {
	Op   string            `json:"op"`
	Args []json.RawMessage `json:"args"`
}

type okReply struct {
	Ok interface{} `json:"ok"`
}

type errReply struct {
	Err string `json:"err"`
}

// EncodeRequest renders a request as a single newline-terminated line.
func EncodeRequest(op string, args ...interface{}) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode %s argument %d: %w", op, i, err)
		}
		raw = append(raw, b)
	}
	return encodeLine(Request{Op: op, Args: raw})
}

// DecodeRequest parses one request line.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("malformed request: %v", err)
	}
	if req.Op == "" {
		return Request{}, fmt.Errorf("malformed request: missing op")
	}
	return req, nil
}

// EncodeOK renders a success reply. A nil value is sent as {"ok":null}.
func EncodeOK(v interface{}) ([]byte, error) {
	return encodeLine(okReply{Ok: v})
}

// EncodeErr renders an error reply.
func EncodeErr(msg string) ([]byte, error) {
	return encodeLine(errReply{Err: msg})
}

// DecodeReply parses one reply line. A success returns the raw "ok" value; an
// error reply returns a *RemoteError whose category follows the message
// prefix. Anything else is a framing violation
// and yields ErrTransport.
func DecodeReply(line []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, transportError(fmt.Errorf("malformed reply %q: %v", bytes.TrimSpace(line), err))
	}
	if raw, ok := fields["err"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, transportError(fmt.Errorf("malformed error reply: %v", err))
		}
		return nil, newRemoteError(msg)
	}
	if raw, ok := fields["ok"]; ok {
		return raw, nil
	}
	return nil, transportError(fmt.Errorf("reply has neither ok nor err: %q", bytes.TrimSpace(line)))
}

func encodeLine(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// decodeArgs unpacks request arguments into dst, which must all be pointers.
func decodeArgs(req Request, dst ...interface{}) error {
	if len(req.Args) != len(dst) {
		return fmt.Errorf("%s: expected %d arguments, got %d", req.Op, len(dst), len(req.Args))
	}
	for i, raw := range req.Args {
		if err := json.Unmarshal(raw, dst[i]); err != nil {
			return fmt.Errorf("%s: argument %d: %v", req.Op, i, err)
		}
	}
	return nil
}
