package round

import "errors"

// Validation errors surface at submission and never corrupt ledger state.
var (
	ErrInvalidAmount = errors.New("bet amount must be a positive number")
	ErrBelowMinimum  = errors.New("bet amount below minimum")
	ErrAboveMaximum  = errors.New("bet amount above maximum")
)

// Protocol errors indicate a caller-sequencing bug. With a correctly wired
// clock none of these should surface outside tests.
var (
	ErrRoundLocked      = errors.New("round is locked, no new bets")
	ErrUnknownBet       = errors.New("unknown bet id")
	ErrAlreadyAllocated = errors.New("bet already allocated")
	ErrRoundNotClosed   = errors.New("ledger has unallocated bets")
	ErrEmptyLedger      = errors.New("no bets to allocate")
)
