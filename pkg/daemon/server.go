package daemon

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceKeyboard/internal/logger"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

// Server answers line protocol requests by forwarding them to a Daemon. It is
// the privileged end of a Client connection.
type Server struct {
	daemon Daemon
	r      *bufio.Reader
	w      io.Writer
	log    *zap.SugaredLogger
}

// NewServer serves d over the given stream pair.
func NewServer(d Daemon, r io.Reader, w io.Writer, log *zap.SugaredLogger) *Server {
	return &Server{daemon: d, r: bufio.NewReader(r), w: w, log: logger.Nop(log)}
}

// RunStdio serves a Direct daemon over the process's stdin and stdout.
func RunStdio(log *zap.SugaredLogger) error {
	d, err := NewDirect(log)
	if err != nil {
		return err
	}
	defer d.Close()
	return NewServer(d, os.Stdin, os.Stdout, log).Run()
}

// Run handles requests in the order they arrive until the input is closed.
// It returns nil on EOF. Malformed requests get an error reply and do not
// stop the loop.
func (s *Server) Run() error {
	for {
		line, readErr := s.r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			reply := s.handle(line)
			if _, err := s.w.Write(reply); err != nil {
				return fmt.Errorf("daemon: write reply: %w", err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("daemon: read request: %w", readErr)
		}
	}
}

func (s *Server) handle(line []byte) []byte {
	req, err := DecodeRequest(line)
	if err != nil {
		s.log.Warnw("Rejecting request", "error", err)
		return s.errLine(err)
	}

	value, err := s.dispatch(req)
	if err != nil {
		s.log.Debugw("Request failed", "op", req.Op, "error", err)
		return s.errLine(err)
	}

	reply, err := EncodeOK(value)
	if err != nil {
		return s.errLine(fmt.Errorf("%s: encode reply: %v", req.Op, err))
	}
	return reply
}

func (s *Server) errLine(err error) []byte {
	reply, encErr := EncodeErr(err.Error())
	if encErr != nil {
		return []byte("{\"err\":\"internal error\"}\n")
	}
	return reply
}

func (s *Server) dispatch(req Request) (interface{}, error) {
	var (
		board                keyboard.BoardID
		layer, output, input uint8
		index, mode, speed   uint8
	)

	switch req.Op {
	case OpRefresh:
		if err := decodeArgs(req); err != nil {
			return nil, err
		}
		return nil, s.daemon.Refresh()
	case OpBoards:
		if err := decodeArgs(req); err != nil {
			return nil, err
		}
		ids, err := s.daemon.Boards()
		if ids == nil {
			ids = []keyboard.BoardID{}
		}
		return ids, err
	case OpModel:
		if err := decodeArgs(req, &board); err != nil {
			return nil, err
		}
		return s.daemon.Model(board)
	case OpVersion:
		if err := decodeArgs(req, &board); err != nil {
			return nil, err
		}
		return s.daemon.Version(board)
	case OpKeymapGet:
		if err := decodeArgs(req, &board, &layer, &output, &input); err != nil {
			return nil, err
		}
		return s.daemon.KeymapGet(board, layer, output, input)
	case OpKeymapSet:
		var value uint16
		if err := decodeArgs(req, &board, &layer, &output, &input, &value); err != nil {
			return nil, err
		}
		return nil, s.daemon.KeymapSet(board, layer, output, input, value)
	case OpMatrixGet:
		if err := decodeArgs(req, &board); err != nil {
			return nil, err
		}
		return s.daemon.MatrixGet(board)
	case OpColor:
		if err := decodeArgs(req, &board, &index); err != nil {
			return nil, err
		}
		return s.daemon.Color(board, index)
	case OpSetColor:
		var color keyboard.Rgb
		if err := decodeArgs(req, &board, &index, &color); err != nil {
			return nil, err
		}
		return nil, s.daemon.SetColor(board, index, color)
	case OpMaxBrightness:
		if err := decodeArgs(req, &board); err != nil {
			return nil, err
		}
		return s.daemon.MaxBrightness(board)
	case OpBrightness:
		if err := decodeArgs(req, &board, &index); err != nil {
			return nil, err
		}
		return s.daemon.Brightness(board, index)
	case OpSetBrightness:
		var value int
		if err := decodeArgs(req, &board, &index, &value); err != nil {
			return nil, err
		}
		return nil, s.daemon.SetBrightness(board, index, value)
	case OpMode:
		if err := decodeArgs(req, &board, &layer); err != nil {
			return nil, err
		}
		mode, speed, err := s.daemon.Mode(board, layer)
		if err != nil {
			return nil, err
		}
		return [2]uint8{mode, speed}, nil
	case OpSetMode:
		if err := decodeArgs(req, &board, &layer, &mode, &speed); err != nil {
			return nil, err
		}
		return nil, s.daemon.SetMode(board, layer, mode, speed)
	case OpLedSave:
		if err := decodeArgs(req, &board); err != nil {
			return nil, err
		}
		return nil, s.daemon.LedSave(board)
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrNotImplemented, req.Op)
	}
}
