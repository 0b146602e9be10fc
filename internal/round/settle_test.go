package round

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func acceptedBet(participant string, dir Direction, amount int64) Bet {
	return Bet{
		ID:          participant,
		Participant: participant,
		Direction:   dir,
		Amount:      decimal.NewFromInt(amount),
		SubmittedAt: time.Unix(1700000000, 0),
		Status:      AllocationAccepted,
	}
}

func TestPriceDirection(t *testing.T) {
	if dir, ok := PriceDirection(decimal.NewFromInt(100), decimal.NewFromInt(105)); !ok || dir != DirectionCall {
		t.Fatalf("rise: dir=%s ok=%v", dir, ok)
	}
	if dir, ok := PriceDirection(decimal.NewFromInt(100), decimal.NewFromInt(95)); !ok || dir != DirectionPut {
		t.Fatalf("fall: dir=%s ok=%v", dir, ok)
	}
	if _, ok := PriceDirection(decimal.NewFromInt(100), decimal.NewFromInt(100)); ok {
		t.Fatalf("tie must favor neither direction")
	}
}

func TestSettle_Directionality(t *testing.T) {
	entry := decimal.NewFromInt(100)
	exit := decimal.NewFromInt(105)
	bets := []Bet{
		acceptedBet("caller", DirectionCall, 10),
		acceptedBet("putter", DirectionPut, 10),
	}

	outcomes := Settle(entry, exit, bets, SettlePolicy{})
	if len(outcomes) != 2 {
		t.Fatalf("outcomes=%d want 2", len(outcomes))
	}

	win := outcomes[0]
	if win.Result != ResultWin || win.Profit.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("call: result=%s profit=%s want win/+10", win.Result, win.Profit)
	}
	if win.Payout.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("call payout=%s want 20 (stake back plus profit)", win.Payout)
	}

	loss := outcomes[1]
	if loss.Result != ResultLoss || loss.Profit.Cmp(decimal.NewFromInt(-10)) != 0 {
		t.Fatalf("put: result=%s profit=%s want loss/-10", loss.Result, loss.Profit)
	}
	if !loss.Payout.IsZero() {
		t.Fatalf("loss payout=%s want 0", loss.Payout)
	}
}

func TestSettle_TieRefundsEveryone(t *testing.T) {
	price := decimal.NewFromInt(64000)
	bets := []Bet{
		acceptedBet("caller", DirectionCall, 50),
		acceptedBet("putter", DirectionPut, 80),
	}

	for _, out := range Settle(price, price, bets, SettlePolicy{}) {
		if out.Result != ResultRefund {
			t.Fatalf("%s: result=%s want refund on tie", out.Bet.Participant, out.Result)
		}
		if !out.Profit.IsZero() {
			t.Fatalf("%s: tie refund profit=%s want 0", out.Bet.Participant, out.Profit)
		}
		if out.Payout.Cmp(out.Bet.Amount) != 0 {
			t.Fatalf("%s: tie payout=%s want full stake %s", out.Bet.Participant, out.Payout, out.Bet.Amount)
		}
	}
}

func TestSettle_LossRefundOverride(t *testing.T) {
	entry := decimal.NewFromInt(100)
	exit := decimal.NewFromInt(105)
	loser := []Bet{acceptedBet("putter", DirectionPut, 100)}

	policy := SettlePolicy{
		LossRefundChance: 1.0,
		Rand:             rand.New(rand.NewSource(1)),
	}
	out := Settle(entry, exit, loser, policy)[0]
	if out.Result != ResultRefund {
		t.Fatalf("result=%s want refund with chance 1.0", out.Result)
	}
	if out.Profit.Cmp(decimal.NewFromInt(50)) != 0 {
		t.Fatalf("profit=%s want half stake 50", out.Profit)
	}
	if out.Payout.Cmp(decimal.NewFromInt(50)) != 0 {
		t.Fatalf("payout=%s want 50", out.Payout)
	}

	// Without a Rand source the override is inert regardless of chance.
	out = Settle(entry, exit, loser, SettlePolicy{LossRefundChance: 1.0})[0]
	if out.Result != ResultLoss {
		t.Fatalf("result=%s want loss when no rand is wired", out.Result)
	}
}

// Profit never leaves [+amount | -amount | [0, amount]] no matter the policy.
func TestSettle_ProfitBounds(t *testing.T) {
	entry := decimal.NewFromInt(100)
	exit := decimal.NewFromInt(90)
	rng := rand.New(rand.NewSource(42))
	policy := SettlePolicy{LossRefundChance: 0.3, Rand: rng}

	var bets []Bet
	for i := int64(1); i <= 40; i++ {
		dir := DirectionCall
		if i%2 == 0 {
			dir = DirectionPut
		}
		bets = append(bets, acceptedBet(string(rune('a'+i%26))+"x", dir, i*25))
	}

	for _, out := range Settle(entry, exit, bets, policy) {
		amount := out.Bet.Amount
		switch out.Result {
		case ResultWin:
			if out.Profit.Cmp(amount) != 0 {
				t.Fatalf("win profit=%s want %s", out.Profit, amount)
			}
		case ResultLoss:
			if out.Profit.Cmp(amount.Neg()) != 0 {
				t.Fatalf("loss profit=%s want %s", out.Profit, amount.Neg())
			}
		case ResultRefund:
			if out.Profit.IsNegative() || out.Profit.GreaterThan(amount) {
				t.Fatalf("refund profit=%s outside [0,%s]", out.Profit, amount)
			}
		default:
			t.Fatalf("unexpected result %q", out.Result)
		}
	}
}
