package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
)

const (
	// stderrLimit bounds how much child stderr is kept for error messages.
	stderrLimit = 4096
	// exitGrace is how long a failed call waits for the child to exit so its
	// stderr can be attached to the error.
	exitGrace = 500 * time.Millisecond
)

// Client forwards every Daemon call to a Server over a pair of pipes, usually
// the stdio of a privileged subprocess. Only one request is in flight at a
// time. After a transport error the Client is broken and every call returns
// that error.
type Client struct {
	mu     sync.Mutex
	w      io.WriteCloser
	r      *bufio.Reader
	broken error

	cmd      *exec.Cmd
	stderr   *tailBuffer
	waitOnce sync.Once
	exited   chan struct{}
	waitErr  error
}

// NewClient starts name with args and talks to it over its stdin and stdout.
func NewClient(name string, args ...string) (*Client, error) {
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("daemon: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("daemon: stdout pipe: %w", err)
	}
	stderr := newTailBuffer(stderrLimit)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("daemon: start %s: %w", name, err)
	}

	c := NewConnClient(stdout, stdin)
	c.cmd = cmd
	c.stderr = stderr
	return c, nil
}

// NewElevatedClient runs "elevate... daemonPath --daemon", for example
// pkexec, so the daemon gets access to the keyboards.
func NewElevatedClient(elevate []string, daemonPath string) (*Client, error) {
	if len(elevate) == 0 {
		return NewClient(daemonPath, "--daemon")
	}
	args := append(append([]string(nil), elevate[1:]...), daemonPath, "--daemon")
	return NewClient(elevate[0], args...)
}

// NewConnClient talks to a Server reachable through r and w.
func NewConnClient(r io.Reader, w io.WriteCloser) *Client {
	return &Client{
		w:      w,
		r:      bufio.NewReader(r),
		exited: make(chan struct{}),
	}
}

// Close closes the request pipe and, for subprocess clients, waits for the
// child to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.w.Close()
	if c.cmd != nil {
		c.reap()
		<-c.exited
		if c.waitErr != nil {
			var exitErr *exec.ExitError
			if !errors.As(c.waitErr, &exitErr) {
				return fmt.Errorf("daemon: wait: %w", c.waitErr)
			}
		}
	}
	if c.broken == nil {
		c.broken = transportError(errors.New("client closed"))
	}
	return err
}

func (c *Client) reap() {
	c.waitOnce.Do(func() {
		go func() {
			c.waitErr = c.cmd.Wait()
			close(c.exited)
		}()
	})
}

// call sends one request and decodes the "ok" value into out, which may be
// nil for operations without a result.
func (c *Client) call(out interface{}, op string, args ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return c.broken
	}

	line, err := EncodeRequest(op, args...)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	if _, err := c.w.Write(line); err != nil {
		return c.fail(fmt.Errorf("send %s: %v", op, err), true)
	}

	reply, err := c.r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return c.fail(fmt.Errorf("%s: daemon closed the connection", op), true)
		}
		return c.fail(fmt.Errorf("%s: read reply: %v", op, err), true)
	}

	raw, err := DecodeReply(reply)
	if err != nil {
		if errors.Is(err, ErrTransport) {
			return c.fail(err, false)
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(fmt.Errorf("%s: unexpected reply %s: %v", op, raw, err), false)
	}
	return nil
}

// fail breaks the client. When the child is likely gone its exit is awaited
// briefly so the stderr tail is complete.
func (c *Client) fail(err error, childGone bool) error {
	if !errors.Is(err, ErrTransport) {
		err = transportError(err)
	}
	if c.cmd != nil {
		if childGone {
			c.reap()
			select {
			case <-c.exited:
			case <-time.After(exitGrace):
			}
		}
		if tail := c.stderr.String(); tail != "" {
			err = fmt.Errorf("%w\n%s", err, tail)
		}
	}
	c.broken = err
	return err
}

func (c *Client) Refresh() error {
	return c.call(nil, OpRefresh)
}

func (c *Client) Boards() ([]keyboard.BoardID, error) {
	var ids []keyboard.BoardID
	if err := c.call(&ids, OpBoards); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) Model(board keyboard.BoardID) (string, error) {
	var model string
	err := c.call(&model, OpModel, board)
	return model, err
}

func (c *Client) Version(board keyboard.BoardID) (string, error) {
	var version string
	err := c.call(&version, OpVersion, board)
	return version, err
}

func (c *Client) KeymapGet(board keyboard.BoardID, layer, output, input uint8) (uint16, error) {
	var value uint16
	err := c.call(&value, OpKeymapGet, board, layer, output, input)
	return value, err
}

func (c *Client) KeymapSet(board keyboard.BoardID, layer, output, input uint8, value uint16) error {
	return c.call(nil, OpKeymapSet, board, layer, output, input, value)
}

func (c *Client) MatrixGet(board keyboard.BoardID) (keyboard.Matrix, error) {
	var m keyboard.Matrix
	err := c.call(&m, OpMatrixGet, board)
	return m, err
}

func (c *Client) Color(board keyboard.BoardID, index uint8) (keyboard.Rgb, error) {
	var color keyboard.Rgb
	err := c.call(&color, OpColor, board, index)
	return color, err
}

func (c *Client) SetColor(board keyboard.BoardID, index uint8, color keyboard.Rgb) error {
	return c.call(nil, OpSetColor, board, index, color)
}

func (c *Client) MaxBrightness(board keyboard.BoardID) (int, error) {
	var value int
	err := c.call(&value, OpMaxBrightness, board)
	return value, err
}

func (c *Client) Brightness(board keyboard.BoardID, index uint8) (int, error) {
	var value int
	err := c.call(&value, OpBrightness, board, index)
	return value, err
}

func (c *Client) SetBrightness(board keyboard.BoardID, index uint8, value int) error {
	return c.call(nil, OpSetBrightness, board, index, value)
}

func (c *Client) Mode(board keyboard.BoardID, layer uint8) (uint8, uint8, error) {
	var pair [2]uint8
	if err := c.call(&pair, OpMode, board, layer); err != nil {
		return 0, 0, err
	}
	return pair[0], pair[1], nil
}

func (c *Client) SetMode(board keyboard.BoardID, layer, mode, speed uint8) error {
	return c.call(nil, OpSetMode, board, layer, mode, speed)
}

func (c *Client) LedSave(board keyboard.BoardID) error {
	return c.call(nil, OpLedSave, board)
}

var _ Daemon = (*Client)(nil)

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
