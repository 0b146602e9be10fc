package round

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

func (d Direction) Valid() bool {
	return d == DirectionCall || d == DirectionPut
}

// AllocationStatus is the liquidity equalizer's verdict on a bet. It moves
// from pending to accepted or rejected exactly once and never reverses.
type AllocationStatus string

const (
	AllocationPending  AllocationStatus = "pending"
	AllocationAccepted AllocationStatus = "accepted"
	AllocationRejected AllocationStatus = "rejected"
)

type Result string

const (
	ResultWin    Result = "win"
	ResultLoss   Result = "loss"
	ResultRefund Result = "refund"
)

// Bet is one wager placed by one participant in the currently open round.
type Bet struct {
	ID          string
	Participant string
	Direction   Direction
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	SubmittedAt time.Time

	Status AllocationStatus

	// Set once by settlement, only for accepted bets.
	Result Result
	Profit decimal.Decimal
}

// Limits are the structural validity bounds enforced at submission.
type Limits struct {
	MinBet decimal.Decimal
	MaxBet decimal.Decimal
}

func DefaultLimits() Limits {
	return Limits{
		MinBet: decimal.NewFromInt(1),
		MaxBet: decimal.NewFromInt(1000),
	}
}

// ValidateAmount checks a stake against the limits without touching any
// ledger state, so callers can fail fast before debiting a balance.
func ValidateAmount(amount decimal.Decimal, limits Limits) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if limits.MinBet.IsPositive() && amount.LessThan(limits.MinBet) {
		return ErrBelowMinimum
	}
	if limits.MaxBet.IsPositive() && amount.GreaterThan(limits.MaxBet) {
		return ErrAboveMaximum
	}
	return nil
}
