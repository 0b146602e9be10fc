package sim

import (
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	tr := New(Options{Seed: 1})
	if len(tr.names) != len(traderNames) {
		t.Fatalf("names = %d, want all %d", len(tr.names), len(traderNames))
	}
	if tr.opts.MinDelay != 5*time.Second || tr.opts.MaxDelay != 20*time.Second {
		t.Fatalf("delays = %s/%s", tr.opts.MinDelay, tr.opts.MaxDelay)
	}
}

func TestNewCapsTraders(t *testing.T) {
	tr := New(Options{Traders: 3, Seed: 1})
	if len(tr.names) != 3 {
		t.Fatalf("names = %d, want 3", len(tr.names))
	}
}
