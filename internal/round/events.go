package round

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventBetPlaced         EventKind = "bet_placed"
	EventAllocationDecided EventKind = "allocation_decided"
	EventRoundSettled      EventKind = "round_settled"
	EventPhaseChanged      EventKind = "phase_changed"
)

// Event is the flat notification record pushed to the sink layer. A networked
// deployment serializes this struct as-is; unused fields stay empty.
type Event struct {
	Kind  EventKind `json:"kind"`
	Round int64     `json:"round"`
	At    time.Time `json:"at"`

	BetID       string           `json:"bet_id,omitempty"`
	Participant string           `json:"participant,omitempty"`
	Direction   Direction        `json:"direction,omitempty"`
	Amount      decimal.Decimal  `json:"amount,omitempty"`
	Status      AllocationStatus `json:"status,omitempty"`
	Result      Result           `json:"result,omitempty"`
	Profit      *decimal.Decimal `json:"profit,omitempty"`

	Phase Phase `json:"phase,omitempty"`
}

// Sink consumes engine events. Implementations must not block: the engine
// publishes from the clock goroutine and from bet submission paths.
type Sink interface {
	Publish(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}
