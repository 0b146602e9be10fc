package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"priceduel/internal/feed"
	"priceduel/internal/models"
	"priceduel/internal/repository"
	"priceduel/internal/round"
)

var ErrInvalidDirection = errors.New("invalid direction")

type Options struct {
	Asset  string
	Limits round.Limits

	// FeeRate is deducted on top of the stake at submission and is never
	// refunded except when the bet is rejected at allocation time.
	FeeRate decimal.Decimal

	Liquidity       decimal.Decimal
	AcceptanceFloor float64

	RoundDuration time.Duration
	LockWindow    time.Duration

	// PriceFreshness is the maximum sample age accepted at a phase edge.
	// An older sample stalls the round until the feed recovers.
	PriceFreshness time.Duration

	StartingBalance decimal.Decimal
	SettlePolicy    round.SettlePolicy

	Feed   feed.Feed
	Repo   repository.Repository
	Sink   round.Sink
	Logger *zap.Logger
}

// Session ties the clock, ledger, allocator and settlement together for a
// single asset. All phase work runs on the clock goroutine; bet submission
// runs on caller goroutines and synchronizes through the ledger.
type Session struct {
	opts   Options
	ledger *round.Ledger
	alloc  round.Allocator
	clock  *round.Clock
	sink   round.Sink
	logger *zap.Logger

	mu         sync.RWMutex
	runCtx     context.Context
	entryPrice decimal.Decimal
	openedAt   time.Time
}

func NewSession(opts Options) *Session {
	if opts.Asset == "" {
		opts.Asset = "BTCUSDT"
	}
	if opts.Limits == (round.Limits{}) {
		opts.Limits = round.DefaultLimits()
	}
	if opts.Liquidity.IsZero() {
		opts.Liquidity = decimal.NewFromInt(10000)
	}
	if opts.PriceFreshness <= 0 {
		opts.PriceFreshness = 10 * time.Second
	}
	if opts.Sink == nil {
		opts.Sink = round.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Session{
		opts:   opts,
		ledger: round.NewLedger(opts.Limits, opts.Sink),
		alloc: round.Allocator{
			Budget:          opts.Liquidity,
			AcceptanceFloor: opts.AcceptanceFloor,
		},
		sink:   opts.Sink,
		logger: opts.Logger,
	}
	s.clock = &round.Clock{
		RoundDuration: opts.RoundDuration,
		LockWindow:    opts.LockWindow,
		OnTransition:  s.handleTransition,
	}
	return s
}

// Run drives rounds until the context is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()
	return s.clock.Run(ctx)
}

// Status is the live view served to clients.
type Status struct {
	round.Status
	Asset      string          `json:"asset"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Price      decimal.Decimal `json:"price"`
	PriceAt    time.Time       `json:"price_at"`
	Bets       int             `json:"bets"`
}

func (s *Session) Status() Status {
	st := Status{
		Status: s.clock.Status(),
		Asset:  s.opts.Asset,
		Bets:   s.ledger.Len(),
	}
	s.mu.RLock()
	st.EntryPrice = s.entryPrice
	s.mu.RUnlock()
	if sample, ok := s.opts.Feed.Current(); ok {
		st.Price = sample.Price
		st.PriceAt = sample.At
	}
	return st
}

// PlaceBet debits the stake plus fee and enters the bet into the open round.
// The debit is reversed when the ledger refuses the submission, so a locked
// round never costs the caller anything.
func (s *Session) PlaceBet(ctx context.Context, participant string, direction round.Direction, amount decimal.Decimal) (round.Bet, error) {
	if !direction.Valid() {
		return round.Bet{}, ErrInvalidDirection
	}
	if err := round.ValidateAmount(amount, s.opts.Limits); err != nil {
		return round.Bet{}, err
	}
	fee := amount.Mul(s.opts.FeeRate)
	total := amount.Add(fee)

	if _, err := s.opts.Repo.EnsureAccount(ctx, participant, s.opts.StartingBalance, false); err != nil {
		return round.Bet{}, fmt.Errorf("ensure account: %w", err)
	}
	if _, err := s.opts.Repo.AdjustBalance(ctx, participant, total.Neg()); err != nil {
		return round.Bet{}, err
	}

	bet, err := s.ledger.Submit(participant, direction, amount, fee, time.Now().UTC())
	if err != nil {
		if _, refundErr := s.opts.Repo.AdjustBalance(ctx, participant, total); refundErr != nil {
			s.logger.Error("failed to refund rejected submission",
				zap.String("participant", participant),
				zap.Error(refundErr),
			)
		}
		return round.Bet{}, err
	}
	return bet, nil
}

func (s *Session) handleTransition(t round.Transition) {
	switch t.To {
	case round.PhaseOpen:
		s.openRound(t)
	case round.PhaseLocking:
		s.lockRound(t)
	case round.PhaseSettling:
		s.settleRound(t)
	case round.PhaseClosed:
		s.closeRound(t)
	}
	s.sink.Publish(round.Event{
		Kind:  round.EventPhaseChanged,
		Round: t.Round,
		At:    t.At,
		Phase: t.To,
	})
}

func (s *Session) openRound(t round.Transition) {
	entry, err := s.waitForPrice()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.entryPrice = entry
	s.openedAt = t.At
	s.mu.Unlock()

	if err := s.ledger.BeginRound(t.Round); err != nil {
		s.logger.Error("ledger carried bets into new round", zap.Int64("round", t.Round), zap.Error(err))
		return
	}
	s.logger.Info("round open",
		zap.Int64("round", t.Round),
		zap.String("entry", entry.String()),
	)
}

func (s *Session) lockRound(t round.Transition) {
	s.ledger.SetLocked(true)

	bets := s.ledger.Snapshot()
	if len(bets) == 0 {
		return
	}
	alloc, err := s.alloc.Allocate(bets)
	if err != nil {
		s.logger.Error("allocation failed", zap.Int64("round", t.Round), zap.Error(err))
		return
	}
	ctx := s.ctx()
	for _, bet := range alloc.Accepted {
		if err := s.ledger.MarkAllocated(bet.ID, round.AllocationAccepted); err != nil {
			s.logger.Error("mark accepted", zap.String("bet", bet.ID), zap.Error(err))
			continue
		}
		s.sink.Publish(round.Event{
			Kind:        round.EventAllocationDecided,
			Round:       t.Round,
			At:          t.At,
			BetID:       bet.ID,
			Participant: bet.Participant,
			Amount:      bet.Amount,
			Status:      round.AllocationAccepted,
		})
	}
	for _, bet := range alloc.Rejected {
		if err := s.ledger.MarkAllocated(bet.ID, round.AllocationRejected); err != nil {
			s.logger.Error("mark rejected", zap.String("bet", bet.ID), zap.Error(err))
			continue
		}
		// Rejection is not a loss: stake and fee both go back.
		refund := bet.Amount.Add(bet.Fee)
		if _, err := s.opts.Repo.AdjustBalance(ctx, bet.Participant, refund); err != nil {
			s.logger.Error("refund rejected bet",
				zap.String("bet", bet.ID),
				zap.String("participant", bet.Participant),
				zap.Error(err),
			)
		}
		s.sink.Publish(round.Event{
			Kind:        round.EventAllocationDecided,
			Round:       t.Round,
			At:          t.At,
			BetID:       bet.ID,
			Participant: bet.Participant,
			Amount:      bet.Amount,
			Status:      round.AllocationRejected,
		})
		// A rejected bet is settled right here, as a refund with zero
		// profit; it never reaches the settlement phase.
		profit := decimal.Zero
		s.sink.Publish(round.Event{
			Kind:        round.EventRoundSettled,
			Round:       t.Round,
			At:          t.At,
			BetID:       bet.ID,
			Participant: bet.Participant,
			Direction:   bet.Direction,
			Amount:      bet.Amount,
			Result:      round.ResultRefund,
			Profit:      &profit,
		})
	}
	s.logger.Info("round locked",
		zap.Int64("round", t.Round),
		zap.Int("accepted", len(alloc.Accepted)),
		zap.Int("rejected", len(alloc.Rejected)),
		zap.String("remaining", alloc.Remaining.String()),
	)
}

func (s *Session) settleRound(t round.Transition) {
	exit, err := s.waitForPrice()
	if err != nil {
		return
	}
	s.mu.RLock()
	entry := s.entryPrice
	openedAt := s.openedAt
	s.mu.RUnlock()

	bets := s.ledger.Snapshot()
	accepted := make([]round.Bet, 0, len(bets))
	var rejectedIDs []string
	staked := decimal.Zero
	for _, b := range bets {
		switch b.Status {
		case round.AllocationAccepted:
			accepted = append(accepted, b)
			staked = staked.Add(b.Amount)
		case round.AllocationRejected:
			rejectedIDs = append(rejectedIDs, b.ID)
		}
	}

	outcomes := round.Settle(entry, exit, accepted, s.opts.SettlePolicy)

	ctx := s.ctx()
	trades := make([]models.Trade, 0, len(outcomes))
	acceptedIDs := make([]string, 0, len(outcomes))
	payout := decimal.Zero
	for _, o := range outcomes {
		if err := s.ledger.SetResult(o.Bet.ID, o.Result, o.Profit); err != nil {
			s.logger.Error("set result", zap.String("bet", o.Bet.ID), zap.Error(err))
			continue
		}
		if o.Payout.IsPositive() {
			if _, err := s.opts.Repo.AdjustBalance(ctx, o.Bet.Participant, o.Payout); err != nil {
				s.logger.Error("credit payout",
					zap.String("bet", o.Bet.ID),
					zap.String("participant", o.Bet.Participant),
					zap.Error(err),
				)
			}
			payout = payout.Add(o.Payout)
		}
		profit := o.Profit
		s.sink.Publish(round.Event{
			Kind:        round.EventRoundSettled,
			Round:       t.Round,
			At:          t.At,
			BetID:       o.Bet.ID,
			Participant: o.Bet.Participant,
			Direction:   o.Bet.Direction,
			Amount:      o.Bet.Amount,
			Result:      o.Result,
			Profit:      &profit,
		})
		acceptedIDs = append(acceptedIDs, o.Bet.ID)
		trades = append(trades, models.Trade{
			ID:          o.Bet.ID,
			RoundSeq:    t.Round,
			Participant: o.Bet.Participant,
			Asset:       s.opts.Asset,
			Direction:   string(o.Bet.Direction),
			Amount:      o.Bet.Amount,
			Fee:         o.Bet.Fee,
			EntryPrice:  entry,
			ExitPrice:   exit,
			StartTime:   openedAt,
			EndTime:     t.At,
			Result:      string(o.Result),
			Profit:      o.Profit,
		})
	}
	if len(trades) > 0 {
		if err := s.opts.Repo.AppendTrades(ctx, trades); err != nil {
			s.logger.Error("persist trades", zap.Int64("round", t.Round), zap.Error(err))
		}
	}

	outcome := "tie"
	if dir, ok := round.PriceDirection(entry, exit); ok {
		outcome = strings.ToLower(string(dir))
	}
	partition, _ := json.Marshal(map[string][]string{
		"accepted": acceptedIDs,
		"rejected": rejectedIDs,
	})
	summary := &models.RoundSummary{
		RoundSeq:    t.Round,
		Asset:       s.opts.Asset,
		EntryPrice:  entry,
		ExitPrice:   exit,
		Outcome:     outcome,
		TotalBets:   len(bets),
		Accepted:    len(accepted),
		Rejected:    len(rejectedIDs),
		StakedTotal: staked,
		PayoutTotal: payout,
		Partition:   datatypes.JSON(partition),
		OpenedAt:    openedAt,
		SettledAt:   t.At,
	}
	if err := s.opts.Repo.InsertRoundSummary(ctx, summary); err != nil {
		s.logger.Error("persist round summary", zap.Int64("round", t.Round), zap.Error(err))
	}
	s.logger.Info("round settled",
		zap.Int64("round", t.Round),
		zap.String("outcome", outcome),
		zap.String("exit", exit.String()),
		zap.Int("settled", len(outcomes)),
	)
}

func (s *Session) closeRound(t round.Transition) {
	if err := s.ledger.Clear(); err != nil {
		s.logger.Error("clear ledger", zap.Int64("round", t.Round), zap.Error(err))
	}
}

// waitForPrice blocks the clock goroutine until the feed has a sample newer
// than the freshness bound. Stalling here is the outage policy: the round
// simply does not advance while the price is unknown.
func (s *Session) waitForPrice() (decimal.Decimal, error) {
	ctx := s.ctx()
	warned := false
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if sample, ok := s.opts.Feed.Current(); ok {
			if time.Since(sample.At) <= s.opts.PriceFreshness {
				return sample.Price, nil
			}
		}
		if !warned {
			warned = true
			s.logger.Warn("price feed stalled, round paused")
		}
		select {
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) ctx() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}
