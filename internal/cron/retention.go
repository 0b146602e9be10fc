package cronrunner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"priceduel/internal/repository"
)

// Retention prunes settled trades and round archives past their TTLs. The
// live round never depends on history, so pruning is safe at any time.
type Retention struct {
	Repo     repository.Repository
	TradeTTL time.Duration
	RoundTTL time.Duration
	Logger   *zap.Logger
}

func (j *Retention) Run(ctx context.Context) {
	if j == nil || j.Repo == nil {
		return
	}
	now := time.Now().UTC()
	if j.TradeTTL > 0 {
		n, err := j.Repo.DeleteTradesBefore(ctx, now.Add(-j.TradeTTL))
		if err != nil {
			j.logError("trade retention failed", err)
		} else if n > 0 && j.Logger != nil {
			j.Logger.Info("pruned trades", zap.Int64("deleted", n))
		}
	}
	if j.RoundTTL > 0 {
		n, err := j.Repo.DeleteRoundSummariesBefore(ctx, now.Add(-j.RoundTTL))
		if err != nil {
			j.logError("round retention failed", err)
		} else if n > 0 && j.Logger != nil {
			j.Logger.Info("pruned round summaries", zap.Int64("deleted", n))
		}
	}
}

func (j *Retention) logError(msg string, err error) {
	if j.Logger != nil {
		j.Logger.Warn(msg, zap.Error(err))
	}
}
