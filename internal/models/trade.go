package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the durable record of one settled bet. Written once by the game
// session after settlement, never mutated.
type Trade struct {
	ID       string `gorm:"type:varchar(64);primaryKey"`
	RoundSeq int64  `gorm:"not null;index"`

	Participant string `gorm:"type:varchar(64);not null;index"`
	Asset       string `gorm:"type:varchar(20);not null"`
	Direction   string `gorm:"type:varchar(10);not null"`

	Amount decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Fee    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	ExitPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	StartTime time.Time `gorm:"type:timestamptz;not null"`
	EndTime   time.Time `gorm:"type:timestamptz;not null;index"`

	Result string          `gorm:"type:varchar(10);not null;index"`
	Profit decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Trade) TableName() string {
	return "trades"
}
