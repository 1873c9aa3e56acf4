package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/brickworks-erp/brickworks/internal/jobs"
	"github.com/brickworks-erp/brickworks/internal/safe"
)

// SafeIntegrityJob recomputes ledger totals from the transaction history and
// compares them with the balance row. Findings are logged and counted; the
// job never mutates the ledger.
type SafeIntegrityJob struct {
	Safe    *safe.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSafeIntegrityJob wires dependencies for the integrity handler.
func NewSafeIntegrityJob(safeSvc *safe.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *SafeIntegrityJob {
	return &SafeIntegrityJob{Safe: safeSvc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskSafeIntegrity tasks.
func (j *SafeIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track("safe_integrity")

	findings, err := j.Safe.CheckIntegrity(ctx)
	if err != nil {
		j.Logger.Error("safe integrity", slog.Any("error", err))
		return tracker.End(err)
	}
	if len(findings) > 0 {
		j.Metrics.AddDrift("safe_balance", len(findings))
		for _, finding := range findings {
			j.Logger.Warn("safe ledger drift", slog.String("finding", finding))
		}
	}
	return tracker.End(nil)
}
