package round

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// SettlePolicy controls the optional loss-refund flourish carried over from
// the game design. With LossRefundChance zero (the default) settlement is
// fully deterministic: win pays the stake, loss forfeits it.
type SettlePolicy struct {
	// LossRefundChance is the probability that a losing bet is converted
	// into a partial refund instead of a full loss.
	LossRefundChance float64

	// LossRefundRatio is the share of the stake returned on such a refund.
	// Zero means 0.5.
	LossRefundRatio decimal.Decimal

	// Rand drives the refund roll. Required when LossRefundChance > 0 so
	// tests can seed it.
	Rand *rand.Rand
}

// Outcome is the settlement verdict for one accepted bet.
type Outcome struct {
	Bet    Bet
	Result Result

	// Profit is the reported gain: +amount on win, -amount on loss, and the
	// refunded value (in [0, amount]) on refund.
	Profit decimal.Decimal

	// Payout is the balance credit owed to the participant: stake plus
	// profit on win, nothing on loss, the refunded portion on refund.
	Payout decimal.Decimal
}

// PriceDirection maps an entry/exit pair to the winning direction. A tie
// favors neither side and returns ok=false: the round settles as all-refund.
func PriceDirection(entry, exit decimal.Decimal) (Direction, bool) {
	switch exit.Cmp(entry) {
	case 1:
		return DirectionCall, true
	case -1:
		return DirectionPut, true
	default:
		return "", false
	}
}

// Settle converts accepted bets plus the round's entry and exit price into
// final outcomes. Rejected bets never reach here; the allocator refunds them
// in full at allocation time.
func Settle(entry, exit decimal.Decimal, accepted []Bet, policy SettlePolicy) []Outcome {
	winning, ok := PriceDirection(entry, exit)
	out := make([]Outcome, 0, len(accepted))
	for _, bet := range accepted {
		out = append(out, settleOne(bet, winning, ok, policy))
	}
	return out
}

func settleOne(bet Bet, winning Direction, decisive bool, policy SettlePolicy) Outcome {
	if !decisive {
		// Tie: neither direction was correct, the stake goes back.
		return Outcome{
			Bet:    bet,
			Result: ResultRefund,
			Profit: decimal.Zero,
			Payout: bet.Amount,
		}
	}
	if bet.Direction == winning {
		return Outcome{
			Bet:    bet,
			Result: ResultWin,
			Profit: bet.Amount,
			Payout: bet.Amount.Add(bet.Amount),
		}
	}
	if policy.LossRefundChance > 0 && policy.Rand != nil && policy.Rand.Float64() < policy.LossRefundChance {
		ratio := policy.LossRefundRatio
		if ratio.IsZero() {
			ratio = halfCollateral
		}
		refunded := bet.Amount.Mul(ratio)
		return Outcome{
			Bet:    bet,
			Result: ResultRefund,
			Profit: refunded,
			Payout: refunded,
		}
	}
	return Outcome{
		Bet:    bet,
		Result: ResultLoss,
		Profit: bet.Amount.Neg(),
		Payout: decimal.Zero,
	}
}
