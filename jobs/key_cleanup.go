package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/brickworks-erp/brickworks/internal/jobs"
)

const defaultKeyRetention = 30 * 24 * time.Hour

// KeyCleaner is the slice of the idempotency store this job needs.
// Implemented by *shared.IdempotencyStore.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// KeyCleanupJob prunes idempotency keys past their retention window. Keys
// only guard against short-lived client retries, so old rows are dead weight.
type KeyCleanupJob struct {
	Store   KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewKeyCleanupJob wires dependencies for the cleanup handler.
func NewKeyCleanupJob(store KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *KeyCleanupJob {
	return &KeyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskKeyCleanup tasks.
func (j *KeyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("key_cleanup")

	retention := defaultKeyRetention
	if len(t.Payload()) > 0 {
		var payload KeyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.Retention > 0 {
			retention = payload.Retention
		}
	}

	if err := j.Store.Cleanup(ctx, retention); err != nil {
		j.Logger.Error("idempotency key cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}
