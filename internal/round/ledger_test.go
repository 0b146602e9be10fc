package round

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type captureSink struct {
	events []Event
}

func (s *captureSink) Publish(e Event) { s.events = append(s.events, e) }

func testLedger(sink Sink) *Ledger {
	return NewLedger(DefaultLimits(), sink)
}

func TestLedgerSubmit_Validation(t *testing.T) {
	l := testLedger(nil)
	now := time.Now()

	_, err := l.Submit("alice", DirectionCall, decimal.Zero, decimal.Zero, now)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: err=%v want ErrInvalidAmount", err)
	}
	_, err = l.Submit("alice", DirectionCall, decimal.NewFromFloat(0.5), decimal.Zero, now)
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("below min: err=%v want ErrBelowMinimum", err)
	}
	_, err = l.Submit("alice", DirectionCall, decimal.NewFromInt(1001), decimal.Zero, now)
	if !errors.Is(err, ErrAboveMaximum) {
		t.Fatalf("above max: err=%v want ErrAboveMaximum", err)
	}
	if l.Len() != 0 {
		t.Fatalf("failed submissions must not touch the ledger, len=%d", l.Len())
	}
}

func TestLedgerSubmit_OrderAndEvent(t *testing.T) {
	sink := &captureSink{}
	l := testLedger(sink)
	if err := l.BeginRound(7); err != nil {
		t.Fatalf("begin round: %v", err)
	}
	base := time.Now()

	for i, p := range []string{"alice", "bob", "carol"} {
		_, err := l.Submit(p, DirectionCall, decimal.NewFromInt(10), decimal.Zero, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("submit %s: %v", p, err)
		}
	}

	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len=%d want 3", len(snap))
	}
	for i, want := range []string{"alice", "bob", "carol"} {
		if snap[i].Participant != want {
			t.Fatalf("snapshot[%d]=%s want %s", i, snap[i].Participant, want)
		}
		if snap[i].Status != AllocationPending {
			t.Fatalf("snapshot[%d] status=%s want pending", i, snap[i].Status)
		}
	}
	if len(sink.events) != 3 {
		t.Fatalf("events=%d want 3", len(sink.events))
	}
	if sink.events[0].Kind != EventBetPlaced || sink.events[0].Round != 7 {
		t.Fatalf("unexpected first event: %+v", sink.events[0])
	}
}

func TestLedgerSnapshot_IsReadOnlyView(t *testing.T) {
	l := testLedger(nil)
	bet, err := l.Submit("alice", DirectionPut, decimal.NewFromInt(10), decimal.Zero, time.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := l.Snapshot()
	snap[0].Status = AllocationAccepted

	if got := l.Snapshot()[0].Status; got != AllocationPending {
		t.Fatalf("mutating a snapshot leaked into the ledger: status=%s", got)
	}
	if err := l.MarkAllocated(bet.ID, AllocationAccepted); err != nil {
		t.Fatalf("mark allocated: %v", err)
	}
}

func TestLedgerMarkAllocated_ExactlyOnce(t *testing.T) {
	l := testLedger(nil)
	bet, err := l.Submit("alice", DirectionCall, decimal.NewFromInt(10), decimal.Zero, time.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := l.MarkAllocated(bet.ID, AllocationAccepted); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := l.MarkAllocated(bet.ID, AllocationRejected); !errors.Is(err, ErrAlreadyAllocated) {
		t.Fatalf("second mark: err=%v want ErrAlreadyAllocated", err)
	}
	if got := l.Snapshot()[0].Status; got != AllocationAccepted {
		t.Fatalf("status reversed to %s", got)
	}
	if err := l.MarkAllocated("missing", AllocationAccepted); !errors.Is(err, ErrUnknownBet) {
		t.Fatalf("unknown bet: err=%v want ErrUnknownBet", err)
	}
	if err := l.MarkAllocated(bet.ID, AllocationPending); !errors.Is(err, ErrAlreadyAllocated) {
		t.Fatalf("pending is not a valid target: err=%v", err)
	}
}

func TestLedgerLocked_RejectsSubmissions(t *testing.T) {
	l := testLedger(nil)
	l.SetLocked(true)
	_, err := l.Submit("late", DirectionCall, decimal.NewFromInt(10), decimal.Zero, time.Now())
	if !errors.Is(err, ErrRoundLocked) {
		t.Fatalf("err=%v want ErrRoundLocked", err)
	}
	if l.Len() != 0 {
		t.Fatalf("locked ledger accepted a bet")
	}
}

func TestLedgerClear_RequiresAllocation(t *testing.T) {
	l := testLedger(nil)
	bet, err := l.Submit("alice", DirectionCall, decimal.NewFromInt(10), decimal.Zero, time.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := l.Clear(); !errors.Is(err, ErrRoundNotClosed) {
		t.Fatalf("clear with pending bet: err=%v want ErrRoundNotClosed", err)
	}
	if err := l.MarkAllocated(bet.ID, AllocationRejected); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := l.Clear(); err != nil {
		t.Fatalf("clear after allocation: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("ledger not empty after clear")
	}
	if err := l.BeginRound(2); err != nil {
		t.Fatalf("begin next round: %v", err)
	}
}

func TestLedgerSetResult_OnlyAcceptedOnce(t *testing.T) {
	l := testLedger(nil)
	accepted, _ := l.Submit("alice", DirectionCall, decimal.NewFromInt(10), decimal.Zero, time.Now())
	rejected, _ := l.Submit("bob", DirectionPut, decimal.NewFromInt(10), decimal.Zero, time.Now())
	if err := l.MarkAllocated(accepted.ID, AllocationAccepted); err != nil {
		t.Fatalf("mark accepted: %v", err)
	}
	if err := l.MarkAllocated(rejected.ID, AllocationRejected); err != nil {
		t.Fatalf("mark rejected: %v", err)
	}

	if err := l.SetResult(rejected.ID, ResultRefund, decimal.Zero); err == nil {
		t.Fatalf("rejected bets never enter settlement")
	}
	if err := l.SetResult(accepted.ID, ResultWin, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("set result: %v", err)
	}
	if err := l.SetResult(accepted.ID, ResultLoss, decimal.NewFromInt(-10)); !errors.Is(err, ErrAlreadyAllocated) {
		t.Fatalf("second result: err=%v want ErrAlreadyAllocated", err)
	}
}
