package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSafeReconcile confirms or voids pending safe transactions.
	TaskSafeReconcile = "safe:reconcile"
	// TaskSafeIntegrity re-checks the ledger balance invariant.
	TaskSafeIntegrity = "safe:integrity"
	// TaskDuePaymentsScan lists employees still owed salary this month.
	TaskDuePaymentsScan = "payroll:due_scan"
	// TaskKeyCleanup prunes expired idempotency keys.
	TaskKeyCleanup = "idempotency:cleanup"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SafeReconcilePayload configures the pending-transaction sweep.
type SafeReconcilePayload struct {
	GracePeriod time.Duration `json:"grace_period"`
}

// NewSafeReconcileTask constructs the reconcile task.
func NewSafeReconcileTask(grace time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(SafeReconcilePayload{GracePeriod: grace})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSafeReconcile, body, asynq.Queue(QueueDefault)), nil
}

// NewSafeIntegrityTask constructs the integrity scan task.
func NewSafeIntegrityTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskSafeIntegrity, nil, asynq.Queue(QueueDefault)), nil
}

// NewDuePaymentsScanTask constructs the due-payments scan task.
func NewDuePaymentsScanTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskDuePaymentsScan, nil, asynq.Queue(QueueDefault)), nil
}

// KeyCleanupPayload configures the idempotency key sweep.
type KeyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewKeyCleanupTask constructs the idempotency cleanup task.
func NewKeyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(KeyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskKeyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP once an outbound relay exists.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}
