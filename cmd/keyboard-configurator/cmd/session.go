package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceKeyboard/internal/config"
	"github.com/OpenTraceLab/OpenTraceKeyboard/internal/logger"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/backend"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr so stdout stays free for command output and the
// daemon protocol.
func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logger.New(level, "stderr")
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}

func openRepository(cfg *config.Config) (*layout.Repository, error) {
	repo, err := layout.NewRepository()
	if err != nil {
		return nil, fmt.Errorf("load built-in layouts: %w", err)
	}
	if cfg.LayoutDir != "" {
		if err := repo.LoadDir(cfg.LayoutDir); err != nil {
			return nil, fmt.Errorf("load layouts from %s: %w", cfg.LayoutDir, err)
		}
	}
	return repo, nil
}

// daemonKind resolves "auto": dummy boards win, then direct access when
// running as root, then the elevated helper.
func daemonKind(cfg *config.Config) string {
	if cfg.Daemon != config.DaemonAuto {
		return cfg.Daemon
	}
	if len(cfg.DummyBoards) > 0 {
		return config.DaemonDummy
	}
	if os.Geteuid() == 0 {
		return config.DaemonDirect
	}
	return config.DaemonElevated
}

func openBackend(cfg *config.Config, repo *layout.Repository, log *zap.SugaredLogger) (*backend.Backend, error) {
	var (
		b   *backend.Backend
		err error
	)
	switch kind := daemonKind(cfg); kind {
	case config.DaemonDummy:
		b = backend.NewDummy(cfg.DummyBoards, repo, log)
	case config.DaemonDirect:
		b, err = backend.NewDirect(repo, log)
	case config.DaemonElevated:
		if cfg.DaemonPath == "" {
			return nil, errors.New("daemon_path is not set")
		}
		b, err = backend.NewElevated(cfg.ElevateCommand, cfg.DaemonPath, repo, log)
	default:
		return nil, fmt.Errorf("unknown daemon kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("start daemon: %w", err)
	}
	b.Refresh()
	return b, nil
}

// session is what most commands need: a refreshed backend and its logger.
type session struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	repo    *layout.Repository
	backend *backend.Backend
	keymap  *layout.Keymap
}

func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	repo, err := openRepository(cfg)
	if err != nil {
		return nil, err
	}
	b, err := openBackend(cfg, repo, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, repo: repo, backend: b, keymap: layout.DefaultKeymap()}, nil
}

func (s *session) Close() {
	if err := s.backend.Close(); err != nil {
		s.log.Warnw("Failed to close daemon", "error", err)
	}
	_ = s.log.Sync()
}

// board returns the board selected with --board, or the first one.
func (s *session) board() (*backend.Board, error) {
	if boardFlag != "" {
		id, err := keyboard.ParseBoardID(boardFlag)
		if err != nil {
			return nil, err
		}
		b, ok := s.backend.Board(id)
		if !ok {
			return nil, fmt.Errorf("board %s not found", id)
		}
		return b, nil
	}
	boards := s.backend.Boards()
	if len(boards) == 0 {
		return nil, errors.New("no boards found")
	}
	return boards[0], nil
}
