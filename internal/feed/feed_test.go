package feed

import (
	"testing"
	"time"
)

func TestSyntheticFeedProducesSamples(t *testing.T) {
	f := NewSyntheticFeed(SyntheticOptions{StartPrice: 50000, StepPct: 0.1, Seed: 1})
	s, ok := f.Current()
	if !ok {
		t.Fatal("feed has no sample after construction")
	}
	if s.Price.IsZero() || s.At.IsZero() {
		t.Fatalf("zero-valued sample: %+v", s)
	}
}

func TestSyntheticFeedStaysBounded(t *testing.T) {
	f := NewSyntheticFeed(SyntheticOptions{StartPrice: 1000, StepPct: 5, Seed: 7})
	lo, hi := 850.0, 1150.0
	for i := 0; i < 5000; i++ {
		f.tick(time.Now().UTC())
		s, _ := f.Current()
		p, _ := s.Price.Float64()
		if p < lo || p > hi {
			t.Fatalf("price %v escaped [%v, %v] at step %d", p, lo, hi, i)
		}
	}
}

func TestSyntheticFeedDeterministicWithSeed(t *testing.T) {
	a := NewSyntheticFeed(SyntheticOptions{StartPrice: 2000, StepPct: 1, Seed: 42})
	b := NewSyntheticFeed(SyntheticOptions{StartPrice: 2000, StepPct: 1, Seed: 42})
	now := time.Now().UTC()
	for i := 0; i < 100; i++ {
		a.tick(now)
		b.tick(now)
	}
	sa, _ := a.Current()
	sb, _ := b.Current()
	if !sa.Price.Equal(sb.Price) {
		t.Fatalf("same seed diverged: %s vs %s", sa.Price, sb.Price)
	}
}

func TestParseTicker(t *testing.T) {
	// Full frame as Binance sends it, including the numeric stats-window
	// keys that only differ from the price fields by case.
	raw := []byte(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT",` +
		`"p":"960.10","P":"1.52","w":"64011.35","x":"63290.00","c":"64250.10","Q":"0.00421",` +
		`"b":"64250.09","B":"1.25","a":"64250.11","A":"0.80","o":"63290.00","h":"64510.00",` +
		`"l":"63105.40","v":"18254.31","q":"1168501234.55","O":1699913600000,"C":1700000000000,` +
		`"F":3421500000,"L":3421987654,"n":487655}`)
	s, ok := parseTicker(raw)
	if !ok {
		t.Fatal("valid ticker rejected")
	}
	if s.Price.String() != "64250.1" {
		t.Fatalf("price = %s", s.Price)
	}
	if s.Change24h.String() != "1.52" {
		t.Fatalf("change = %s", s.Change24h)
	}
	if s.At != time.UnixMilli(1700000000000).UTC() {
		t.Fatalf("timestamp = %s", s.At)
	}

	if _, ok := parseTicker([]byte(`{"c":"not-a-number"}`)); ok {
		t.Fatal("accepted malformed price")
	}
	if _, ok := parseTicker([]byte(`ping`)); ok {
		t.Fatal("accepted non-json payload")
	}
}
