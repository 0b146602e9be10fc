package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const DefaultBinanceWSSURL = "wss://stream.binance.com:9443/ws"

type BinanceOptions struct {
	URL               string
	Symbol            string
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	Logger            *zap.Logger
}

// BinanceFeed streams the 24h ticker for one symbol and keeps the
// latest trade price. It reconnects with jittered backoff and never
// returns until the context is cancelled.
type BinanceFeed struct {
	opts      BinanceOptions
	seenFirst bool

	mu     sync.RWMutex
	sample Sample
	ok     bool
}

func NewBinanceFeed(opts BinanceOptions) *BinanceFeed {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = DefaultBinanceWSSURL
	}
	if strings.TrimSpace(opts.Symbol) == "" {
		opts.Symbol = "btcusdt"
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 20 * time.Second
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin == 0 {
		opts.BackoffMin = 1 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &BinanceFeed{opts: opts}
}

func (f *BinanceFeed) Current() (Sample, bool) {
	if f == nil {
		return Sample{}, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sample, f.ok
}

func (f *BinanceFeed) streamURL() string {
	base := strings.TrimRight(f.opts.URL, "/")
	return fmt.Sprintf("%s/%s@ticker", base, strings.ToLower(f.opts.Symbol))
}

func (f *BinanceFeed) Run(ctx context.Context) error {
	if f == nil {
		return fmt.Errorf("feed is nil")
	}
	url := f.streamURL()
	backoff := f.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			if f.opts.Logger != nil {
				f.opts.Logger.Warn("binance ws connect failed", zap.Error(err))
			}
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, f.opts.BackoffMax)
			continue
		}
		if f.opts.Logger != nil {
			f.opts.Logger.Info("binance ws connected", zap.String("symbol", f.opts.Symbol))
		}
		backoff = f.opts.BackoffMin

		err = f.consume(ctx, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "reconnect")
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if f.opts.Logger != nil {
			f.opts.Logger.Warn("binance ws read failed", zap.Error(err))
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, f.opts.BackoffMax)
	}
}

func (f *BinanceFeed) consume(ctx context.Context, conn *websocket.Conn) error {
	heartbeatErr := make(chan error, 1)
	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(f.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				heartbeatErr <- heartbeatCtx.Err()
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(heartbeatCtx, f.opts.PingTimeout)
				err := conn.Ping(pingCtx)
				cancelPing()
				if err != nil {
					heartbeatErr <- err
					return
				}
			}
		}
	}()

	for {
		select {
		case err := <-heartbeatErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		default:
		}
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		sample, ok := parseTicker(raw)
		if !ok {
			continue
		}
		if f.opts.Logger != nil && !f.seenFirst {
			f.seenFirst = true
			f.opts.Logger.Info("binance ws first sample", zap.String("price", sample.Price.String()))
		}
		f.mu.Lock()
		f.sample = sample
		f.ok = true
		f.mu.Unlock()
	}
}

// binanceTicker declares every case-colliding key of the 24hrTicker frame
// explicitly: encoding/json falls back to case-insensitive tag matching, so
// leaving out "e" would route the event-type string into the int64 "E"
// field, and leaving out "C" would route the stats close time into the "c"
// price string. Either mismatch fails the whole unmarshal.
type binanceTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	LastPrice string `json:"c"`
	CloseTime int64  `json:"C"`
	ChangeAbs string `json:"p"`
	ChangePct string `json:"P"`
}

func parseTicker(raw []byte) (Sample, bool) {
	var t binanceTicker
	if err := json.Unmarshal(raw, &t); err != nil {
		return Sample{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(t.LastPrice))
	if err != nil || price.IsZero() {
		return Sample{}, false
	}
	change, err := decimal.NewFromString(strings.TrimSpace(t.ChangePct))
	if err != nil {
		change = decimal.Zero
	}
	at := time.Now().UTC()
	if t.EventTime > 0 {
		at = time.UnixMilli(t.EventTime).UTC()
	}
	return Sample{Price: price, Change24h: change, At: at}, true
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(base / 2)))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
