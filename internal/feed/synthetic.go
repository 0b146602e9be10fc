package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type SyntheticOptions struct {
	StartPrice float64
	// StepPct bounds each tick's move as a percentage of the current price.
	StepPct  float64
	Interval time.Duration
	Seed     int64
}

// SyntheticFeed produces a trending random walk. Used for local runs
// and tests where a live exchange stream is unavailable.
type SyntheticFeed struct {
	opts SyntheticOptions
	rng  *rand.Rand

	mu      sync.RWMutex
	sample  Sample
	ok      bool
	start   float64
	price   float64
	trend   float64
	trendAt int
}

func NewSyntheticFeed(opts SyntheticOptions) *SyntheticFeed {
	if opts.StartPrice <= 0 {
		opts.StartPrice = 64000
	}
	if opts.StepPct <= 0 {
		opts.StepPct = 0.05
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &SyntheticFeed{
		opts:  opts,
		rng:   rand.New(rand.NewSource(seed)),
		start: opts.StartPrice,
		price: opts.StartPrice,
		trend: 1,
	}
	f.tick(time.Now().UTC())
	return f
}

func (f *SyntheticFeed) Current() (Sample, bool) {
	if f == nil {
		return Sample{}, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sample, f.ok
}

func (f *SyntheticFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			f.tick(now.UTC())
		}
	}
}

// tick advances the walk one step. The trend direction flips at random
// intervals so the series has runs instead of pure noise, and the price
// is clamped to stay within 15% of the starting level.
func (f *SyntheticFeed) tick(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.trendAt++
	if f.trendAt > 30+f.rng.Intn(50) {
		if f.rng.Float64() > 0.5 {
			f.trend = 1
		} else {
			f.trend = -1
		}
		f.trendAt = 0
	}

	step := f.price * f.opts.StepPct / 100
	move := f.trend*step*0.3 + (f.rng.Float64()-0.5)*step
	next := f.price + move
	if lo := f.start * 0.85; next < lo {
		next = lo
	}
	if hi := f.start * 1.15; next > hi {
		next = hi
	}
	f.price = next

	change := (next - f.start) / f.start * 100
	f.sample = Sample{
		Price:     decimal.NewFromFloat(next).Round(2),
		Change24h: decimal.NewFromFloat(change).Round(2),
		At:        now,
	}
	f.ok = true
}
