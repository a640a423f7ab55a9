package backend

import (
	"io"
	"testing"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/daemon"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

func testRepo(t *testing.T) *layout.Repository {
	t.Helper()
	repo, err := layout.NewRepository()
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	return repo
}

// faultyDaemon wraps a Dummy and fails chosen operations.
type faultyDaemon struct {
	*daemon.Dummy
	errs  map[string]error
	calls map[string]int
}

func newFaultyDaemon(models ...string) *faultyDaemon {
	return &faultyDaemon{
		Dummy: daemon.NewDummy(models),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *faultyDaemon) fail(op string) error {
	f.calls[op]++
	return f.errs[op]
}

func (f *faultyDaemon) Refresh() error {
	if err := f.fail(daemon.OpRefresh); err != nil {
		return err
	}
	return f.Dummy.Refresh()
}

func (f *faultyDaemon) Boards() ([]keyboard.BoardID, error) {
	if err := f.fail(daemon.OpBoards); err != nil {
		return nil, err
	}
	return f.Dummy.Boards()
}

func (f *faultyDaemon) KeymapGet(id keyboard.BoardID, layer, output, input uint8) (uint16, error) {
	if err := f.fail(daemon.OpKeymapGet); err != nil {
		return 0, err
	}
	return f.Dummy.KeymapGet(id, layer, output, input)
}

func (f *faultyDaemon) KeymapSet(id keyboard.BoardID, layer, output, input uint8, value uint16) error {
	if err := f.fail(daemon.OpKeymapSet); err != nil {
		return err
	}
	return f.Dummy.KeymapSet(id, layer, output, input, value)
}

func (f *faultyDaemon) MaxBrightness(id keyboard.BoardID) (int, error) {
	if err := f.fail(daemon.OpMaxBrightness); err != nil {
		return 0, err
	}
	return f.Dummy.MaxBrightness(id)
}

func (f *faultyDaemon) Mode(id keyboard.BoardID, layer uint8) (uint8, uint8, error) {
	if err := f.fail(daemon.OpMode); err != nil {
		return 0, 0, err
	}
	return f.Dummy.Mode(id, layer)
}

func (f *faultyDaemon) SetMode(id keyboard.BoardID, layer, mode, speed uint8) error {
	if err := f.fail(daemon.OpSetMode); err != nil {
		return err
	}
	return f.Dummy.SetMode(id, layer, mode, speed)
}

func (f *faultyDaemon) SetColor(id keyboard.BoardID, index uint8, color keyboard.Rgb) error {
	if err := f.fail(daemon.OpSetColor); err != nil {
		return err
	}
	return f.Dummy.SetColor(id, index, color)
}

func (f *faultyDaemon) SetBrightness(id keyboard.BoardID, index uint8, value int) error {
	if err := f.fail(daemon.OpSetBrightness); err != nil {
		return err
	}
	return f.Dummy.SetBrightness(id, index, value)
}

// pipeClient serves d through a daemon.Server and returns a Client talking to
// it over in-memory pipes.
func pipeClient(t *testing.T, d daemon.Daemon) *daemon.Client {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := daemon.NewServer(d, reqR, respW, nil).Run()
		respW.Close()
		done <- err
	}()
	c := daemon.NewConnClient(respR, reqW)
	t.Cleanup(func() {
		c.Close()
		if err := <-done; err != nil {
			t.Errorf("server Run returned error: %v", err)
		}
	})
	return c
}

// unplugOnMode detaches a board the first time its lighting mode is read.
type unplugOnMode struct {
	*daemon.Dummy
}

func (u unplugOnMode) Mode(board keyboard.BoardID, layer uint8) (uint8, uint8, error) {
	u.RemoveBoard(board)
	return u.Dummy.Mode(board, layer)
}
