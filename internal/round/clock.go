package round

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Phase string

const (
	PhaseOpen     Phase = "open"
	PhaseLocking  Phase = "locking"
	PhaseSettling Phase = "settling"
	PhaseClosed   Phase = "closed"
)

// Transition is one phase change of the round state machine.
type Transition struct {
	Round int64
	From  Phase
	To    Phase
	At    time.Time
}

// Status is a point-in-time view of the clock for read-side callers.
type Status struct {
	Round     int64         `json:"round"`
	Phase     Phase         `json:"phase"`
	Remaining time.Duration `json:"remaining"`
}

// Clock drives round timing as a single scheduled task: open, locking,
// settling, closed, reopen. One goroutine owns all transitions so the
// bet-window close and the settlement trigger cannot drift apart.
//
// Rounds start eagerly on a fixed cadence. A round always runs to completion
// once open; timeout is the normal completion path, not an error.
type Clock struct {
	// RoundDuration is the full cycle length, default 60s.
	RoundDuration time.Duration

	// LockWindow is the equalizer window at the end of a round, default 5s.
	LockWindow time.Duration

	// OnTransition is invoked synchronously from the clock goroutine.
	// Blocking inside the callback freezes the countdown, which is exactly
	// the stall behavior wanted while the price feed is unavailable.
	OnTransition func(Transition)

	mu        sync.Mutex
	round     int64
	phase     Phase
	phaseEnds time.Time
}

const (
	DefaultRoundDuration = 60 * time.Second
	DefaultLockWindow    = 5 * time.Second
)

// Run loops rounds until the context is canceled. There is no cross-round
// cancellation primitive: cancellation takes effect at the next phase edge.
func (c *Clock) Run(ctx context.Context) error {
	total := c.RoundDuration
	if total <= 0 {
		total = DefaultRoundDuration
	}
	lock := c.LockWindow
	if lock <= 0 {
		lock = DefaultLockWindow
	}
	if lock >= total {
		return fmt.Errorf("lock window %s must be shorter than round duration %s", lock, total)
	}
	open := total - lock

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.mu.Lock()
		c.round++
		c.mu.Unlock()

		c.transition(PhaseOpen, open)
		if err := sleepCtx(ctx, open); err != nil {
			return err
		}
		c.transition(PhaseLocking, lock)
		if err := sleepCtx(ctx, lock); err != nil {
			return err
		}
		c.transition(PhaseSettling, 0)
		c.transition(PhaseClosed, 0)
	}
}

func (c *Clock) transition(to Phase, phaseLen time.Duration) {
	now := time.Now().UTC()
	c.mu.Lock()
	from := c.phase
	c.phase = to
	if phaseLen > 0 {
		c.phaseEnds = now.Add(phaseLen)
	} else {
		c.phaseEnds = now
	}
	round := c.round
	cb := c.OnTransition
	c.mu.Unlock()

	if cb != nil {
		cb(Transition{Round: round, From: from, To: to, At: now})
	}
}

func (c *Clock) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := time.Until(c.phaseEnds)
	if remaining < 0 {
		remaining = 0
	}
	return Status{Round: c.round, Phase: c.phase, Remaining: remaining}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
