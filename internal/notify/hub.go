package notify

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"priceduel/internal/round"
)

// Hub fans round events out to subscribers by kind. It implements
// round.Sink, so the ledger and session publish into it directly.
type Hub struct {
	mu   sync.RWMutex
	subs map[round.EventKind][]chan round.Event
	all  []chan round.Event

	logger        *zap.Logger
	droppedFanout uint64
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   map[round.EventKind][]chan round.Event{},
		logger: logger,
	}
}

// Subscribe returns a channel that receives events of the given kind.
// An empty kind subscribes to every event.
func (h *Hub) Subscribe(kind round.EventKind, buf int) <-chan round.Event {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan round.Event, buf)
	h.mu.Lock()
	if kind == "" {
		h.all = append(h.all, ch)
	} else {
		h.subs[kind] = append(h.subs[kind], ch)
	}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Publish(e round.Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[e.Kind] {
		h.send(ch, e)
	}
	for _, ch := range h.all {
		h.send(ch, e)
	}
}

func (h *Hub) send(ch chan round.Event, e round.Event) {
	select {
	case ch <- e:
	default:
		// Drop when subscriber is slow; the hub must not block settlement.
		atomic.AddUint64(&h.droppedFanout, 1)
		if h.logger != nil {
			h.logger.Warn("event dropped for slow subscriber",
				zap.String("kind", string(e.Kind)),
				zap.Int64("round", e.Round),
			)
		}
	}
}

// Dropped reports how many events were discarded due to slow subscribers.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.droppedFanout)
}
