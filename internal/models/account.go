package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account tracks one participant's balance. Stakes and fees are debited at
// submission; refunds and payouts are credited by allocation and settlement.
type Account struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Participant string `gorm:"type:varchar(64);not null;uniqueIndex"`

	Balance decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	// Simulated marks bot accounts so they can be excluded from payouts
	// reporting.
	Simulated bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}
