package api

import (
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 32

// hub fans events out to websocket subscribers. Publishing never blocks; a
// subscriber that falls behind loses events.
type hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	log  *zap.SugaredLogger
}

func newHub(log *zap.SugaredLogger) *hub {
	return &hub{subs: make(map[chan Event]struct{}), log: log}
}

func (h *hub) subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warnw("Dropping event for slow subscriber", "event", ev.Event, "board", ev.Board.ID)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
