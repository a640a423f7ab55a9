// Package backend keeps the set of attached keyboards in sync with a daemon
// and announces boards as they come and go.
package backend

import (
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceKeyboard/internal/logger"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/daemon"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

// Signal names.
const (
	SignalBoardAdded   = "board-added"
	SignalBoardRemoved = "board-removed"
)

// BoardHandler is called with the board a signal is about.
type BoardHandler func(*Board)

// Backend owns the live boards of one daemon. It is not safe for concurrent
// use; callers on several goroutines must serialize access.
type Backend struct {
	daemon daemon.Daemon
	repo   *layout.Repository
	log    *zap.SugaredLogger

	boards  map[keyboard.BoardID]*Board
	signals map[string][]BoardHandler
}

// New wraps an existing daemon.
func New(d daemon.Daemon, repo *layout.Repository, log *zap.SugaredLogger) *Backend {
	return &Backend{
		daemon:  d,
		repo:    repo,
		log:     logger.Nop(log),
		boards:  make(map[keyboard.BoardID]*Board),
		signals: make(map[string][]BoardHandler),
	}
}

// NewDummy returns a backend over an in-memory daemon reporting one board
// per model.
func NewDummy(models []string, repo *layout.Repository, log *zap.SugaredLogger) *Backend {
	return New(daemon.NewDummy(models), repo, log)
}

// NewDirect returns a backend that opens the keyboards from this process.
func NewDirect(repo *layout.Repository, log *zap.SugaredLogger) (*Backend, error) {
	d, err := daemon.NewDirect(log)
	if err != nil {
		return nil, err
	}
	return New(d, repo, log), nil
}

// NewElevated returns a backend whose daemon runs as
// "elevate... daemonPath --daemon".
func NewElevated(elevate []string, daemonPath string, repo *layout.Repository, log *zap.SugaredLogger) (*Backend, error) {
	c, err := daemon.NewElevatedClient(elevate, daemonPath)
	if err != nil {
		return nil, err
	}
	return New(c, repo, log), nil
}

// Daemon returns the daemon behind the backend.
func (b *Backend) Daemon() daemon.Daemon {
	return b.daemon
}

// Repository returns the layout repository used to build boards.
func (b *Backend) Repository() *layout.Repository {
	return b.repo
}

// Close releases the daemon when it holds resources.
func (b *Backend) Close() error {
	if c, ok := b.daemon.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ConnectBoardAdded registers fn for boards that appear.
func (b *Backend) ConnectBoardAdded(fn BoardHandler) {
	b.connect(SignalBoardAdded, fn)
}

// ConnectBoardRemoved registers fn for boards that disappear.
func (b *Backend) ConnectBoardRemoved(fn BoardHandler) {
	b.connect(SignalBoardRemoved, fn)
}

func (b *Backend) connect(signal string, fn BoardHandler) {
	b.signals[signal] = append(b.signals[signal], fn)
}

func (b *Backend) emit(signal string, board *Board) {
	handlers := append([]BoardHandler(nil), b.signals[signal]...)
	for _, fn := range handlers {
		fn(board)
	}
}

// Refresh reconciles the cached boards with the daemon. Removals are
// announced before additions. A board that fails to load is logged and
// retried on the next refresh.
func (b *Backend) Refresh() {
	if err := b.daemon.Refresh(); err != nil {
		b.log.Errorw("Failed to refresh daemon", "error", err)
	}

	ids, err := b.daemon.Boards()
	if err != nil {
		b.log.Errorw("Failed to list boards", "error", err)
		return
	}

	current := make(map[keyboard.BoardID]bool, len(ids))
	for _, id := range ids {
		current[id] = true
	}

	var removed []keyboard.BoardID
	for id := range b.boards {
		if !current[id] {
			removed = append(removed, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	for _, id := range removed {
		board := b.boards[id]
		delete(b.boards, id)
		b.log.Infow("Board removed", "board", id)
		b.emit(SignalBoardRemoved, board)
	}

	for _, id := range ids {
		if _, ok := b.boards[id]; ok {
			continue
		}
		board, err := NewBoard(b.daemon, b.repo, id, b.log)
		if err != nil {
			b.log.Errorw("Failed to load board", "board", id, "error", err)
			continue
		}
		b.boards[id] = board
		b.log.Infow("Board added", "board", id, "model", board.Model())
		b.emit(SignalBoardAdded, board)
	}
}

// Boards returns the live boards sorted by id.
func (b *Backend) Boards() []*Board {
	out := make([]*Board, 0, len(b.boards))
	for _, board := range b.boards {
		out = append(out, board)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Board returns a live board.
func (b *Backend) Board(id keyboard.BoardID) (*Board, bool) {
	board, ok := b.boards[id]
	return board, ok
}
