package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"priceduel/internal/models"
)

var (
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

type ListTradesParams struct {
	Limit  int
	Offset int

	Participant *string
	Result      *string
	RoundSeq    *int64
	Since       *time.Time

	OrderBy string
	Asc     *bool
}

type ListAccountsParams struct {
	Limit  int
	Offset int

	Simulated *bool
}

type ListRoundsParams struct {
	Limit  int
	Offset int

	Since *time.Time
}

// Repository is the persistence boundary of the game: settled trades, account
// balances and round archives. The live round never touches it.
type Repository interface {
	// Trades (append-only history of settled bets).
	AppendTrade(ctx context.Context, item *models.Trade) error
	AppendTrades(ctx context.Context, items []models.Trade) error
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	CountTrades(ctx context.Context, params ListTradesParams) (int64, error)
	DeleteTradesBefore(ctx context.Context, before time.Time) (int64, error)

	// Accounts.
	GetAccount(ctx context.Context, participant string) (*models.Account, error)
	EnsureAccount(ctx context.Context, participant string, starting decimal.Decimal, simulated bool) (*models.Account, error)
	AdjustBalance(ctx context.Context, participant string, delta decimal.Decimal) (decimal.Decimal, error)
	ListAccounts(ctx context.Context, params ListAccountsParams) ([]models.Account, error)

	// Round archives.
	InsertRoundSummary(ctx context.Context, item *models.RoundSummary) error
	GetRoundSummary(ctx context.Context, roundSeq int64) (*models.RoundSummary, error)
	ListRoundSummaries(ctx context.Context, params ListRoundsParams) ([]models.RoundSummary, error)
	DeleteRoundSummariesBefore(ctx context.Context, before time.Time) (int64, error)
}
