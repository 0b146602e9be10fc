package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RoundSummary archives one completed round: prices, the equalizer partition
// and the aggregate money flow. The round itself is not a persisted entity;
// this is its tombstone.
type RoundSummary struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	RoundSeq int64  `gorm:"not null;uniqueIndex"`
	Asset    string `gorm:"type:varchar(20);not null"`

	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	ExitPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	// Outcome is "call", "put" or "tie".
	Outcome string `gorm:"type:varchar(10);not null"`

	TotalBets int `gorm:"not null"`
	Accepted  int `gorm:"not null"`
	Rejected  int `gorm:"not null"`

	StakedTotal decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	PayoutTotal decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	// Partition holds the accepted/rejected bet ids as JSON.
	Partition datatypes.JSON `gorm:"type:jsonb"`

	OpenedAt  time.Time `gorm:"type:timestamptz;not null"`
	SettledAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (RoundSummary) TableName() string {
	return "round_summaries"
}
