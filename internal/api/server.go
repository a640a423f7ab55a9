// Package api exposes a Backend over HTTP for a front end: a small REST
// surface for reading and writing board state and a websocket stream of
// board-added and board-removed events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceKeyboard/internal/logger"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/backend"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/daemon"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/keyboard"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

// DefaultSpeed is used by a mode change without a speed when the layer has
// no cached speed.
const DefaultSpeed = 128

// Server is the HTTP API server. Every Backend access happens under one
// mutex, including the periodic refresh.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger

	mu      sync.Mutex
	backend *backend.Backend
	keymap  *layout.Keymap

	events *hub
}

// NewServer wires the routes and subscribes to the backend's signals.
func NewServer(b *backend.Backend, km *layout.Keymap, log *zap.SugaredLogger) *Server {
	log = logger.Nop(log)
	if km == nil {
		km = layout.DefaultKeymap()
	}
	s := &Server{
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
		log:     log,
		backend: b,
		keymap:  km,
		events:  newHub(log),
	}

	b.ConnectBoardAdded(func(board *backend.Board) {
		s.events.publish(Event{Event: backend.SignalBoardAdded, Board: newBoardView(board)})
	})
	b.ConnectBoardRemoved(func(board *backend.Board) {
		s.events.publish(Event{Event: backend.SignalBoardRemoved, Board: newBoardView(board)})
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.checkOrigin)

	api.HandleFunc("/boards", s.handleListBoards).Methods("GET")
	api.HandleFunc("/boards/{id}", s.handleGetBoard).Methods("GET")
	api.HandleFunc("/boards/{id}/keys", s.handleGetKeys).Methods("GET")
	api.HandleFunc("/boards/{id}/keys/{name}/layers/{layer}", s.handleSetKey).Methods("PUT")
	api.HandleFunc("/boards/{id}/layers/{layer}", s.handleSetLayer).Methods("PUT")
	api.HandleFunc("/boards/{id}/matrix", s.handleGetMatrix).Methods("GET")
	api.HandleFunc("/boards/{id}/save", s.handleSave).Methods("POST")
	api.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	api.HandleFunc("/events", s.handleEvents)
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// sameOrigin accepts requests without an Origin header and browser requests
// from a page served by the API's own host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// checkOrigin rejects cross-origin requests that change board state.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !sameOrigin(r) {
			s.log.Warnw("Rejected cross-origin request", "method", r.Method, "path", r.URL.Path, "origin", r.Header.Get("Origin"))
			writeError(w, &httpError{status: http.StatusForbidden, msg: "cross-origin request rejected"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Refresh runs one backend refresh.
func (s *Server) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend.Refresh()
}

// RunRefresh refreshes every interval until ctx is done.
func (s *Server) RunRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

// ListenAndServe serves on addr and refreshes the backend every interval
// until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string, interval time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.Refresh()
	go s.RunRefresh(ctx, interval)

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Serving API", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.events.closeAll()
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.events.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Close ends every event stream.
func (s *Server) Close() {
	s.events.closeAll()
}

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	views := []BoardView{}
	for _, b := range s.backend.Boards() {
		views = append(views, newBoardView(b))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.board(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBoardView(board))
}

func (s *Server) handleGetKeys(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.board(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newKeyViews(board, s.keymap))
}

func (s *Server) handleGetMatrix(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.board(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pressed, err := board.PressedKeys()
	if err != nil {
		writeError(w, err)
		return
	}
	names := []string{}
	for _, k := range pressed {
		names = append(names, k.Name)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"pressed": names})
}

type setKeyRequest struct {
	Scancode json.RawMessage `json:"scancode"`
}

func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	var req setKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("decode body: %v", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.board(r)
	if err != nil {
		writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	key, ok := lookupKey(board, vars["name"])
	if !ok {
		writeError(w, notFound("unknown key %q", vars["name"]))
		return
	}
	layer, err := strconv.Atoi(vars["layer"])
	if err != nil {
		writeError(w, badRequest("invalid layer %q", vars["layer"]))
		return
	}
	code, err := s.parseScancode(req.Scancode)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := board.SetScancode(key, layer, code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"scancode": s.keymap.Name(code)})
}

type setLayerRequest struct {
	Color      json.RawMessage `json:"color"`
	Brightness *int            `json:"brightness"`
	Mode       json.RawMessage `json:"mode"`
	Speed      *uint8          `json:"speed"`
}

func (s *Server) handleSetLayer(w http.ResponseWriter, r *http.Request) {
	var req setLayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("decode body: %v", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.board(r)
	if err != nil {
		writeError(w, err)
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["layer"])
	if err != nil {
		writeError(w, badRequest("invalid layer %q", mux.Vars(r)["layer"]))
		return
	}

	if len(req.Color) > 0 {
		color, err := parseColor(req.Color)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := board.SetLayerColor(index, color); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Brightness != nil {
		if err := board.SetLayerBrightness(index, *req.Brightness); err != nil {
			writeError(w, err)
			return
		}
	}
	if len(req.Mode) > 0 {
		mode, err := parseMode(req.Mode)
		if err != nil {
			writeError(w, err)
			return
		}
		speed := uint8(DefaultSpeed)
		if l, ok := board.Layer(index); ok {
			if _, cached, ok := l.Mode(); ok {
				speed = cached
			}
		}
		if req.Speed != nil {
			speed = *req.Speed
		}
		if err := board.SetLayerMode(index, mode.Index, speed); err != nil {
			writeError(w, err)
			return
		}
	}

	view := newBoardView(board)
	for _, l := range view.Layers {
		if int(l.Index) == index {
			writeJSON(w, http.StatusOK, l)
			return
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.board(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := board.Save(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.Refresh()
	s.handleListBoards(w, r)
}

// handleEvents streams board events. The current boards are sent first as
// board-added events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	updates := s.events.subscribe()
	var initial []Event
	for _, b := range s.backend.Boards() {
		initial = append(initial, Event{Event: backend.SignalBoardAdded, Board: newBoardView(b)})
	}
	s.mu.Unlock()
	defer s.events.unsubscribe(updates)

	for _, ev := range initial {
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Debugw("WebSocket write failed", "error", err)
			return
		}
	}

	// Reading is only needed to notice the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debugw("WebSocket write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// board resolves the {id} route variable. Callers hold s.mu.
func (s *Server) board(r *http.Request) (*backend.Board, error) {
	raw := mux.Vars(r)["id"]
	id, err := keyboard.ParseBoardID(raw)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	board, ok := s.backend.Board(id)
	if !ok {
		return nil, notFound("board %s not found", id)
	}
	return board, nil
}

// lookupKey finds a key by name, falling back to its index.
func lookupKey(board *backend.Board, name string) (*backend.Key, bool) {
	if k, ok := board.KeyByName(name); ok {
		return k, true
	}
	i, err := strconv.Atoi(name)
	if err != nil {
		return nil, false
	}
	keys := board.Keys()
	if i < 0 || i >= len(keys) {
		return nil, false
	}
	return keys[i], true
}

func (s *Server) parseScancode(raw json.RawMessage) (uint16, error) {
	if len(raw) == 0 {
		return 0, badRequest("missing scancode")
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		code, err := s.keymap.Parse(name)
		if err != nil {
			return 0, badRequest("%v", err)
		}
		return code, nil
	}
	var code uint16
	if err := json.Unmarshal(raw, &code); err != nil {
		return 0, badRequest("scancode must be a name or a number in 0..65535")
	}
	return code, nil
}

// parseColor accepts "rrggbb", "#rrggbb" or [r, g, b].
func parseColor(raw json.RawMessage) (keyboard.Rgb, error) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err == nil {
		color, err := keyboard.ParseRgb(strings.TrimPrefix(hex, "#"))
		if err != nil {
			return keyboard.Rgb{}, badRequest("%v", err)
		}
		return color, nil
	}
	var color keyboard.Rgb
	if err := json.Unmarshal(raw, &color); err != nil {
		return keyboard.Rgb{}, badRequest("%v", err)
	}
	return color, nil
}

// parseMode accepts a mode id such as "SOLID_COLOR" or its index.
func parseMode(raw json.RawMessage) (backend.Mode, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		if m, ok := backend.ModeByID(id); ok {
			return m, nil
		}
		return backend.Mode{}, badRequest("unknown mode %q", id)
	}
	var index uint8
	if err := json.Unmarshal(raw, &index); err != nil {
		return backend.Mode{}, badRequest("mode must be an id or an index")
	}
	if m, ok := backend.ModeByIndex(index); ok {
		return m, nil
	}
	return backend.Mode{}, badRequest("unknown mode %d", index)
}

// httpError carries a status for request errors detected by the handlers.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &httpError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) error {
	return &httpError{status: http.StatusNotFound, msg: fmt.Sprintf(format, args...)}
}

// statusOf maps an error to a response status.
func statusOf(err error) int {
	var he *httpError
	switch {
	case errors.As(err, &he):
		return he.status
	case errors.Is(err, backend.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, daemon.ErrCapability):
		return http.StatusConflict
	case errors.Is(err, daemon.ErrDeviceGone):
		return http.StatusGone
	case errors.Is(err, daemon.ErrProtocol), errors.Is(err, daemon.ErrTransport), errors.Is(err, daemon.ErrNotImplemented):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
