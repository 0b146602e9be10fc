package sim

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"priceduel/internal/game"
	"priceduel/internal/repository"
	"priceduel/internal/round"
)

var traderNames = []string{
	"CryptoKing", "TraderPro", "MoonShot", "DiamondHands", "BullRunner",
	"BearHunter", "WhaleTrades", "DayTrader99", "HODLer420", "CoinMaster",
	"BitBoss", "EthEnthusiast", "AltCoinKing", "ChartWizard", "TrendFollower",
	"SwingMaster", "ScalpKing", "YieldFarmer", "DefiLord", "NFTTrader",
}

var betAmounts = []int64{5, 10, 15, 20, 25, 50, 100}

type Options struct {
	// Traders caps how many distinct names place bets. Zero means all.
	Traders  int
	MinDelay time.Duration
	MaxDelay time.Duration
	Seed     int64

	StartingBalance decimal.Decimal

	Session *game.Session
	Repo    repository.Repository
	Logger  *zap.Logger
}

// Traders keeps rounds populated by placing small random bets on a loose
// cadence, so a lone player still has counterflow to settle against.
type Traders struct {
	opts  Options
	names []string
	rng   *rand.Rand
}

func New(opts Options) *Traders {
	if opts.MinDelay <= 0 {
		opts.MinDelay = 5 * time.Second
	}
	if opts.MaxDelay <= opts.MinDelay {
		opts.MaxDelay = opts.MinDelay + 15*time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	names := traderNames
	if opts.Traders > 0 && opts.Traders < len(names) {
		names = names[:opts.Traders]
	}
	return &Traders{
		opts:  opts,
		names: names,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Run seeds the trader accounts and then places bets until the context is
// cancelled. Submission failures during the locking window are expected and
// only logged at debug level.
func (t *Traders) Run(ctx context.Context) error {
	for _, name := range t.names {
		if _, err := t.opts.Repo.EnsureAccount(ctx, name, t.opts.StartingBalance, true); err != nil {
			return err
		}
	}
	for {
		delay := t.opts.MinDelay + time.Duration(t.rng.Int63n(int64(t.opts.MaxDelay-t.opts.MinDelay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		t.placeOne(ctx)
	}
}

func (t *Traders) placeOne(ctx context.Context) {
	name := t.names[t.rng.Intn(len(t.names))]
	direction := round.DirectionCall
	if t.rng.Float64() < 0.5 {
		direction = round.DirectionPut
	}
	amount := decimal.NewFromInt(betAmounts[t.rng.Intn(len(betAmounts))])

	bet, err := t.opts.Session.PlaceBet(ctx, name, direction, amount)
	switch {
	case err == nil:
		t.opts.Logger.Debug("simulated bet placed",
			zap.String("participant", name),
			zap.String("bet", bet.ID),
			zap.String("direction", string(direction)),
			zap.String("amount", amount.String()),
		)
	case errors.Is(err, round.ErrRoundLocked):
		t.opts.Logger.Debug("simulated bet hit locked round", zap.String("participant", name))
	case errors.Is(err, repository.ErrInsufficientFunds):
		// Busted trader; top it back up so the table never empties.
		if _, err := t.opts.Repo.AdjustBalance(ctx, name, t.opts.StartingBalance); err != nil {
			t.opts.Logger.Warn("failed to restake simulated trader",
				zap.String("participant", name), zap.Error(err))
		}
	default:
		t.opts.Logger.Warn("simulated bet failed",
			zap.String("participant", name), zap.Error(err))
	}
}
