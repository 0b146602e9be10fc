package round

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

var halfCollateral = decimal.NewFromFloat(0.5)

// Allocator decides, once per round during the locking window, which pending
// bets are honored against a liquidity budget. Allocate is a pure function:
// the same bet list and budget always produce the same partition.
type Allocator struct {
	// Budget is the counterparty capacity backing one round. It is not
	// consumed across rounds; the session resets it every cycle.
	Budget decimal.Decimal

	// AcceptanceFloor is the minimum share of bets accepted regardless of
	// strict budget exhaustion, as long as half-collateralization holds.
	// This is a gameplay policy, not a law of the domain. Zero means 0.7.
	AcceptanceFloor float64
}

// Allocation is the accepted/rejected partition for one round.
type Allocation struct {
	Accepted []Bet
	Rejected []Bet

	Remaining   decimal.Decimal
	MinAccepted int
}

// Allocate walks the bets in arrival order, accepting while liquidity lasts.
// Until the acceptance floor is met, a bet may also be accepted when the
// remaining budget covers at least half its stake. Rejected bets carry no
// loss exposure: the caller refunds them in full immediately.
func (a Allocator) Allocate(bets []Bet) (Allocation, error) {
	if len(bets) == 0 {
		return Allocation{}, ErrEmptyLedger
	}
	floor := a.AcceptanceFloor
	if floor <= 0 {
		floor = 0.7
	}

	sorted := make([]Bet, len(bets))
	copy(sorted, bets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
	})

	minAccepted := int(math.Ceil(floor * float64(len(sorted))))
	remaining := a.Budget

	out := Allocation{
		Accepted:    make([]Bet, 0, len(sorted)),
		Rejected:    nil,
		MinAccepted: minAccepted,
	}
	for _, bet := range sorted {
		accept := remaining.GreaterThanOrEqual(bet.Amount) ||
			(len(out.Accepted) < minAccepted && remaining.GreaterThanOrEqual(bet.Amount.Mul(halfCollateral)))
		if accept {
			remaining = remaining.Sub(bet.Amount)
			bet.Status = AllocationAccepted
			out.Accepted = append(out.Accepted, bet)
		} else {
			bet.Status = AllocationRejected
			out.Rejected = append(out.Rejected, bet)
		}
	}
	out.Remaining = remaining
	return out, nil
}
