package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"priceduel/internal/models"
	"priceduel/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Trades -----------------------------------------------------------------

func (s *Store) AppendTrade(ctx context.Context, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) AppendTrades(ctx context.Context, items []models.Trade) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(items, 100).Error
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.tradeQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "end_time")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Trade
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.tradeQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) tradeQuery(ctx context.Context, params repository.ListTradesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Trade{})
	if params.Participant != nil && strings.TrimSpace(*params.Participant) != "" {
		query = query.Where("participant = ?", strings.TrimSpace(*params.Participant))
	}
	if params.Result != nil && strings.TrimSpace(*params.Result) != "" {
		query = query.Where("result = ?", strings.TrimSpace(*params.Result))
	}
	if params.RoundSeq != nil {
		query = query.Where("round_seq = ?", *params.RoundSeq)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("end_time >= ?", *params.Since)
	}
	return query
}

func (s *Store) DeleteTradesBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil || before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("end_time < ?", before).
		Delete(&models.Trade{})
	return res.RowsAffected, res.Error
}

// --- Accounts ---------------------------------------------------------------

func (s *Store) GetAccount(ctx context.Context, participant string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Account
	err := s.db.WithContext(ctx).
		Where("participant = ?", strings.TrimSpace(participant)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) EnsureAccount(ctx context.Context, participant string, starting decimal.Decimal, simulated bool) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	item := models.Account{
		Participant: strings.TrimSpace(participant),
		Balance:     starting,
		Simulated:   simulated,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "participant"}},
			DoNothing: true,
		}).
		Create(&item).Error
	if err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, participant)
}

// AdjustBalance applies a signed delta under a row lock. A debit that would
// push the balance negative fails with ErrInsufficientFunds and leaves the
// row untouched.
func (s *Store) AdjustBalance(ctx context.Context, participant string, delta decimal.Decimal) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	var next decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct models.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("participant = ?", strings.TrimSpace(participant)).
			First(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrUnknownAccount
		}
		if err != nil {
			return err
		}
		next = acct.Balance.Add(delta)
		if next.IsNegative() {
			return repository.ErrInsufficientFunds
		}
		return tx.Model(&models.Account{}).
			Where("id = ?", acct.ID).
			Update("balance", next).Error
	})
	if err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

func (s *Store) ListAccounts(ctx context.Context, params repository.ListAccountsParams) ([]models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Account{})
	if params.Simulated != nil {
		query = query.Where("simulated = ?", *params.Simulated)
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Account
	if err := query.Order("participant asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Round archives ---------------------------------------------------------

func (s *Store) InsertRoundSummary(ctx context.Context, item *models.RoundSummary) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetRoundSummary(ctx context.Context, roundSeq int64) (*models.RoundSummary, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.RoundSummary
	err := s.db.WithContext(ctx).
		Where("round_seq = ?", roundSeq).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRoundSummaries(ctx context.Context, params repository.ListRoundsParams) ([]models.RoundSummary, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.RoundSummary{})
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("settled_at >= ?", *params.Since)
	}
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.RoundSummary
	if err := query.Order("round_seq desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteRoundSummariesBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil || before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("settled_at < ?", before).
		Delete(&models.RoundSummary{})
	return res.RowsAffected, res.Error
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(column + " " + dir)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
