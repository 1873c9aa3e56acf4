package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/brickworks-erp/brickworks/internal/jobs"
	"github.com/brickworks-erp/brickworks/internal/safe"
)

const defaultGracePeriod = 15 * time.Minute

// SafeReconcileJob settles pending safe transactions against the payroll
// payment history. Entries with a matching payment are confirmed; stale ones
// are voided and refunded.
type SafeReconcileJob struct {
	Safe     *safe.Service
	Verifier safe.PaymentVerifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewSafeReconcileJob wires dependencies for the reconcile handler.
func NewSafeReconcileJob(safeSvc *safe.Service, verifier safe.PaymentVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *SafeReconcileJob {
	return &SafeReconcileJob{Safe: safeSvc, Verifier: verifier, Logger: logger, Metrics: metrics}
}

// Handle processes TaskSafeReconcile tasks.
func (j *SafeReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("safe_reconcile")

	grace := defaultGracePeriod
	if len(t.Payload()) > 0 {
		var payload SafeReconcilePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.GracePeriod > 0 {
			grace = payload.GracePeriod
		}
	}

	result, err := j.Safe.ReconcilePending(ctx, j.Verifier, grace)
	if err != nil {
		j.Logger.Error("safe reconcile", slog.Any("error", err))
		return tracker.End(err)
	}
	if result.Confirmed > 0 || result.Voided > 0 {
		j.Logger.Info("safe reconcile settled pending transactions",
			slog.Int("confirmed", result.Confirmed),
			slog.Int("voided", result.Voided))
	}
	return tracker.End(nil)
}
