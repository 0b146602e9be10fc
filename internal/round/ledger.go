package round

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger holds the mutable set of bets for the currently open round and
// enforces structural validity. All mutations are serialized under one mutex
// so submissions, allocation marking and clearing are linearized relative to
// the clock's phase transitions.
type Ledger struct {
	limits Limits
	sink   Sink

	mu     sync.Mutex
	seq    int64
	locked bool
	bets   []*Bet
	byID   map[string]*Bet
}

func NewLedger(limits Limits, sink Sink) *Ledger {
	if sink == nil {
		sink = NopSink{}
	}
	return &Ledger{
		limits: limits,
		sink:   sink,
		byID:   map[string]*Bet{},
	}
}

// BeginRound unlocks the ledger and tags subsequent bets with the new round
// sequence. The ledger must have been cleared first.
func (l *Ledger) BeginRound(seq int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.bets) > 0 {
		return ErrRoundNotClosed
	}
	l.seq = seq
	l.locked = false
	return nil
}

// SetLocked closes (or reopens) the submission window. While locked, Submit
// fails with ErrRoundLocked; callers queue or reject, never merge late bets
// into the settling round.
func (l *Ledger) SetLocked(locked bool) {
	l.mu.Lock()
	l.locked = locked
	l.mu.Unlock()
}

func (l *Ledger) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// Submit validates the stake, appends a pending bet in submission order and
// notifies the sink. The fee is informational bookkeeping for the ledger; the
// caller owns balance movement.
func (l *Ledger) Submit(participant string, direction Direction, amount, fee decimal.Decimal, now time.Time) (Bet, error) {
	if err := ValidateAmount(amount, l.limits); err != nil {
		return Bet{}, err
	}
	bet := Bet{
		ID:          uuid.NewString(),
		Participant: participant,
		Direction:   direction,
		Amount:      amount,
		Fee:         fee,
		SubmittedAt: now,
		Status:      AllocationPending,
	}

	l.mu.Lock()
	if l.locked {
		l.mu.Unlock()
		return Bet{}, ErrRoundLocked
	}
	stored := bet
	l.bets = append(l.bets, &stored)
	l.byID[stored.ID] = &stored
	seq := l.seq
	l.mu.Unlock()

	l.sink.Publish(Event{
		Kind:        EventBetPlaced,
		Round:       seq,
		At:          now,
		BetID:       bet.ID,
		Participant: participant,
		Direction:   direction,
		Amount:      amount,
	})
	return bet, nil
}

// Snapshot returns the current bets in submission order. The slice holds
// copies; allocation status changes only through MarkAllocated.
func (l *Ledger) Snapshot() []Bet {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Bet, 0, len(l.bets))
	for _, b := range l.bets {
		out = append(out, *b)
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bets)
}

// MarkAllocated moves a bet from pending to accepted or rejected, exactly
// once.
func (l *Ledger) MarkAllocated(betID string, status AllocationStatus) error {
	if status != AllocationAccepted && status != AllocationRejected {
		return ErrAlreadyAllocated
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bet, ok := l.byID[betID]
	if !ok {
		return ErrUnknownBet
	}
	if bet.Status != AllocationPending {
		return ErrAlreadyAllocated
	}
	bet.Status = status
	return nil
}

// SetResult records the settlement outcome on an accepted bet, exactly once.
func (l *Ledger) SetResult(betID string, result Result, profit decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bet, ok := l.byID[betID]
	if !ok {
		return ErrUnknownBet
	}
	if bet.Status != AllocationAccepted || bet.Result != "" {
		return ErrAlreadyAllocated
	}
	bet.Result = result
	bet.Profit = profit
	return nil
}

// Clear empties the ledger for the next round. It refuses to drop bets that
// were never allocated; losing a pending bet would leak its stake.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.bets {
		if b.Status == AllocationPending {
			return ErrRoundNotClosed
		}
	}
	l.bets = l.bets[:0]
	l.byID = map[string]*Bet{}
	return nil
}
