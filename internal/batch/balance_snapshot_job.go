package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"account-service/internal/domain/account"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	accountsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accounts_total",
		Help: "Number of accounts per currency and status.",
	}, []string{"currency", "status"})

	accountBalanceTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "account_balance_total",
		Help: "Sum of account balances per currency and status, in major units.",
	}, []string{"currency", "status"})
)

// BalanceSnapshotJob periodically rolls the book up per currency and
// status and exports the totals as Prometheus gauges.
type BalanceSnapshotJob struct {
	repo   account.Repository
	logger *slog.Logger
}

func NewBalanceSnapshotJob(repo account.Repository, logger *slog.Logger) *BalanceSnapshotJob {
	if repo == nil || logger == nil {
		panic("BalanceSnapshotJob dependencies cannot be nil")
	}
	return &BalanceSnapshotJob{
		repo:   repo,
		logger: logger.With("job", "BalanceSnapshot"),
	}
}

func (j *BalanceSnapshotJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting balance snapshot job.")

	summaries, err := j.repo.SummarizeBalances(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to summarize balances, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to summarize balances: %w", err)
	}

	// Reset first so currencies that dropped off the book do not keep
	// reporting their last value.
	accountsTotal.Reset()
	accountBalanceTotal.Reset()

	for _, s := range summaries {
		accountsTotal.WithLabelValues(s.Currency, string(s.Status)).Set(float64(s.AccountCount))
		accountBalanceTotal.WithLabelValues(s.Currency, string(s.Status)).Set(s.TotalBalance.InexactFloat64())
	}

	j.logger.InfoContext(ctx, "Balance snapshot job finished.",
		slog.Int("series", len(summaries)), slog.Duration("duration", time.Since(startTime)))
	return nil
}
