package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"priceduel/internal/feed"
	"priceduel/internal/models"
	"priceduel/internal/repository"
	"priceduel/internal/round"
)

type fakeRepo struct {
	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	trades    []models.Trade
	summaries []models.RoundSummary
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{balances: map[string]decimal.Decimal{}}
}

func (r *fakeRepo) AppendTrade(_ context.Context, item *models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, *item)
	return nil
}

func (r *fakeRepo) AppendTrades(_ context.Context, items []models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, items...)
	return nil
}

func (r *fakeRepo) ListTrades(context.Context, repository.ListTradesParams) ([]models.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Trade(nil), r.trades...), nil
}

func (r *fakeRepo) CountTrades(context.Context, repository.ListTradesParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.trades)), nil
}

func (r *fakeRepo) DeleteTradesBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *fakeRepo) GetAccount(_ context.Context, participant string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bal, ok := r.balances[participant]
	if !ok {
		return nil, repository.ErrUnknownAccount
	}
	return &models.Account{Participant: participant, Balance: bal}, nil
}

func (r *fakeRepo) EnsureAccount(_ context.Context, participant string, starting decimal.Decimal, _ bool) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.balances[participant]; !ok {
		r.balances[participant] = starting
	}
	return &models.Account{Participant: participant, Balance: r.balances[participant]}, nil
}

func (r *fakeRepo) AdjustBalance(_ context.Context, participant string, delta decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bal, ok := r.balances[participant]
	if !ok {
		return decimal.Zero, repository.ErrUnknownAccount
	}
	next := bal.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, repository.ErrInsufficientFunds
	}
	r.balances[participant] = next
	return next, nil
}

func (r *fakeRepo) ListAccounts(context.Context, repository.ListAccountsParams) ([]models.Account, error) {
	return nil, nil
}

func (r *fakeRepo) InsertRoundSummary(_ context.Context, item *models.RoundSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, *item)
	return nil
}

func (r *fakeRepo) GetRoundSummary(context.Context, int64) (*models.RoundSummary, error) {
	return nil, nil
}

func (r *fakeRepo) ListRoundSummaries(context.Context, repository.ListRoundsParams) ([]models.RoundSummary, error) {
	return nil, nil
}

func (r *fakeRepo) DeleteRoundSummariesBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) balance(participant string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[participant]
}

type fakeFeed struct {
	mu     sync.Mutex
	sample feed.Sample
	ok     bool
}

func (f *fakeFeed) set(price float64) {
	f.mu.Lock()
	f.sample = feed.Sample{Price: decimal.NewFromFloat(price), At: time.Now().UTC()}
	f.ok = true
	f.mu.Unlock()
}

func (f *fakeFeed) stale(price float64, age time.Duration) {
	f.mu.Lock()
	f.sample = feed.Sample{Price: decimal.NewFromFloat(price), At: time.Now().UTC().Add(-age)}
	f.ok = true
	f.mu.Unlock()
}

func (f *fakeFeed) Current() (feed.Sample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sample, f.ok
}

type captureSink struct {
	mu     sync.Mutex
	events []round.Event
}

func (c *captureSink) Publish(e round.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *captureSink) byKind(kind round.EventKind) []round.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []round.Event
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func testSession(repo *fakeRepo, f *fakeFeed, sink round.Sink, liquidity int64) *Session {
	return NewSession(Options{
		Asset:           "BTCUSDT",
		FeeRate:         decimal.NewFromFloat(0.05),
		Liquidity:       decimal.NewFromInt(liquidity),
		StartingBalance: decimal.NewFromInt(1000),
		PriceFreshness:  10 * time.Second,
		Feed:            f,
		Repo:            repo,
		Sink:            sink,
	})
}

func transition(s *Session, seq int64, to round.Phase) {
	s.handleTransition(round.Transition{Round: seq, To: to, At: time.Now().UTC()})
}

func TestPlaceBetDebitsStakePlusFee(t *testing.T) {
	repo := newFakeRepo()
	f := &fakeFeed{}
	f.set(50000)
	s := testSession(repo, f, nil, 10000)
	transition(s, 1, round.PhaseOpen)

	bet, err := s.PlaceBet(context.Background(), "alice", round.DirectionCall, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if !bet.Fee.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("fee = %s, want 5", bet.Fee)
	}
	if got := repo.balance("alice"); !got.Equal(decimal.NewFromInt(895)) {
		t.Fatalf("balance = %s, want 895", got)
	}
}

func TestPlaceBetRefusedWhenLockedRefunds(t *testing.T) {
	repo := newFakeRepo()
	f := &fakeFeed{}
	f.set(50000)
	s := testSession(repo, f, nil, 10000)
	transition(s, 1, round.PhaseOpen)
	transition(s, 1, round.PhaseLocking)

	_, err := s.PlaceBet(context.Background(), "alice", round.DirectionPut, decimal.NewFromInt(100))
	if !errors.Is(err, round.ErrRoundLocked) {
		t.Fatalf("err = %v, want ErrRoundLocked", err)
	}
	if got := repo.balance("alice"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance = %s, want full refund to 1000", got)
	}
}

func TestPlaceBetRejectsInvalidInput(t *testing.T) {
	repo := newFakeRepo()
	f := &fakeFeed{}
	f.set(50000)
	s := testSession(repo, f, nil, 10000)
	transition(s, 1, round.PhaseOpen)

	if _, err := s.PlaceBet(context.Background(), "alice", "sideways", decimal.NewFromInt(10)); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("direction err = %v", err)
	}
	if _, err := s.PlaceBet(context.Background(), "alice", round.DirectionCall, decimal.NewFromInt(5000)); !errors.Is(err, round.ErrAboveMaximum) {
		t.Fatalf("amount err = %v", err)
	}
	if got := repo.balance("alice"); !got.IsZero() {
		t.Fatalf("invalid bets must not create balances, got %s", got)
	}
}

func TestFullRoundSettlement(t *testing.T) {
	repo := newFakeRepo()
	f := &fakeFeed{}
	sink := &captureSink{}
	s := testSession(repo, f, sink, 10000)

	f.set(50000)
	transition(s, 1, round.PhaseOpen)

	ctx := context.Background()
	if _, err := s.PlaceBet(ctx, "alice", round.DirectionCall, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := s.PlaceBet(ctx, "bob", round.DirectionPut, decimal.NewFromInt(200)); err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	transition(s, 1, round.PhaseLocking)
	f.set(50100) // price went up, CALL wins
	transition(s, 1, round.PhaseSettling)
	transition(s, 1, round.PhaseClosed)

	// alice: 1000 - 105 + 200 = 1095. bob: 1000 - 210 + 0 = 790.
	if got := repo.balance("alice"); !got.Equal(decimal.NewFromInt(1095)) {
		t.Fatalf("alice balance = %s, want 1095", got)
	}
	if got := repo.balance("bob"); !got.Equal(decimal.NewFromInt(790)) {
		t.Fatalf("bob balance = %s, want 790", got)
	}

	if len(repo.trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(repo.trades))
	}
	if len(repo.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(repo.summaries))
	}
	sum := repo.summaries[0]
	if sum.Outcome != "call" || sum.Accepted != 2 || sum.Rejected != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if !sum.StakedTotal.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("staked = %s, want 300", sum.StakedTotal)
	}
	if !sum.PayoutTotal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("payout = %s, want 200", sum.PayoutTotal)
	}

	if got := len(sink.byKind(round.EventRoundSettled)); got != 2 {
		t.Fatalf("settled events = %d, want 2", got)
	}
	if s.ledger.Len() != 0 {
		t.Fatal("ledger not cleared after close")
	}

	// Next round opens cleanly.
	f.set(50100)
	transition(s, 2, round.PhaseOpen)
	if _, err := s.PlaceBet(ctx, "alice", round.DirectionCall, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("bet in round 2: %v", err)
	}
}

func TestTieRefundsStakes(t *testing.T) {
	repo := newFakeRepo()
	f := &fakeFeed{}
	s := testSession(repo, f, nil, 10000)

	f.set(50000)
	transition(s, 1, round.PhaseOpen)
	ctx := context.Background()
	if _, err := s.PlaceBet(ctx, "alice", round.DirectionCall, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("bet: %v", err)
	}
	transition(s, 1, round.PhaseLocking)
	f.set(50000) // unchanged
	transition(s, 1, round.PhaseSettling)
	transition(s, 1, round.PhaseClosed)

	// Stake comes back, fee does not.
	if got := repo.balance("alice"); !got.Equal(decimal.NewFromInt(995)) {
		t.Fatalf("balance = %s, want 995", got)
	}
	if repo.summaries[0].Outcome != "tie" {
		t.Fatalf("outcome = %s, want tie", repo.summaries[0].Outcome)
	}
}

func TestRejectedBetRefundedInFull(t *testing.T) {
	repo := newFakeRepo()
	f := &fakeFeed{}
	sink := &captureSink{}
	// Budget covers only the first bet strictly; floor ceil(0.7*2)=2 but the
	// half-collateral fallback cannot cover half of 800 either.
	s := testSession(repo, f, sink, 500)

	f.set(50000)
	transition(s, 1, round.PhaseOpen)
	ctx := context.Background()
	if _, err := s.PlaceBet(ctx, "early", round.DirectionCall, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("bet: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := s.PlaceBet(ctx, "late", round.DirectionCall, decimal.NewFromInt(800)); err != nil {
		t.Fatalf("bet: %v", err)
	}

	transition(s, 1, round.PhaseLocking)

	// Rejected participant is made whole immediately, fee included.
	if got := repo.balance("late"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("late balance = %s, want 1000", got)
	}
	decided := sink.byKind(round.EventAllocationDecided)
	if len(decided) != 2 {
		t.Fatalf("allocation events = %d, want 2", len(decided))
	}
	// The rejection also shows up as a settlement record: refund, zero
	// profit, published at lock time.
	settled := sink.byKind(round.EventRoundSettled)
	if len(settled) != 1 {
		t.Fatalf("settled events at lock = %d, want 1", len(settled))
	}
	if settled[0].Participant != "late" || settled[0].Result != round.ResultRefund {
		t.Fatalf("rejection settlement = %+v", settled[0])
	}
	if settled[0].Profit == nil || !settled[0].Profit.IsZero() {
		t.Fatalf("rejection settlement profit = %v, want 0", settled[0].Profit)
	}

	f.set(50100)
	transition(s, 1, round.PhaseSettling)
	transition(s, 1, round.PhaseClosed)

	// Only the accepted bet settles into a trade.
	if len(repo.trades) != 1 || repo.trades[0].Participant != "early" {
		t.Fatalf("trades = %+v", repo.trades)
	}
	if got := len(sink.byKind(round.EventRoundSettled)); got != 2 {
		t.Fatalf("settled events after round = %d, want 2", got)
	}
	if got := repo.summaries[0].Rejected; got != 1 {
		t.Fatalf("summary rejected = %d, want 1", got)
	}
}

func TestStalePriceStallsRound(t *testing.T) {
	repo := newFakeRepo()
	f := &fakeFeed{}
	f.stale(50000, time.Minute)
	s := testSession(repo, f, nil, 10000)

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		transition(s, 1, round.PhaseOpen)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("round opened on a stale price")
	case <-time.After(300 * time.Millisecond):
	}

	f.set(50000)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("round did not open after feed recovered")
	}
	cancel()
}
