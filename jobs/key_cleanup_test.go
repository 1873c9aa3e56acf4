package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingCleaner struct {
	olderThan time.Duration
	calls     int
	err       error
}

func (r *recordingCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	r.calls++
	r.olderThan = olderThan
	return r.err
}

func TestKeyCleanupUsesPayloadRetention(t *testing.T) {
	cleaner := &recordingCleaner{}
	job := NewKeyCleanupJob(cleaner, slog.Default(), nil)

	task, err := NewKeyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, cleaner.calls)
	require.Equal(t, 48*time.Hour, cleaner.olderThan)
}

func TestKeyCleanupDefaultsRetention(t *testing.T) {
	cleaner := &recordingCleaner{}
	job := NewKeyCleanupJob(cleaner, slog.Default(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskKeyCleanup, nil))
	require.NoError(t, err)
	require.Equal(t, defaultKeyRetention, cleaner.olderThan)
}

func TestKeyCleanupReturnsStoreError(t *testing.T) {
	cleaner := &recordingCleaner{err: errors.New("connection reset")}
	job := NewKeyCleanupJob(cleaner, slog.Default(), nil)

	task, err := NewKeyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}
