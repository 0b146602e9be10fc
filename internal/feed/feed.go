package feed

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sample is a single observed price for the tracked asset.
type Sample struct {
	Price     decimal.Decimal
	Change24h decimal.Decimal
	At        time.Time
}

// Feed exposes the most recent price sample. Current reports false
// until the feed has produced its first sample.
type Feed interface {
	Current() (Sample, bool)
}
