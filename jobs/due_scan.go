package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/brickworks-erp/brickworks/internal/jobs"
	"github.com/brickworks-erp/brickworks/internal/payroll"
)

// DuePaymentsScanJob lists active employees still owed salary this month and
// mails a summary to the finance inbox when any are found.
type DuePaymentsScanJob struct {
	Payroll  *payroll.Service
	Enqueuer *Client
	NotifyTo string
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewDuePaymentsScanJob wires dependencies for the due-payments handler.
func NewDuePaymentsScanJob(payrollSvc *payroll.Service, enqueuer *Client, notifyTo string, logger *slog.Logger, metrics *jobmetrics.Metrics) *DuePaymentsScanJob {
	return &DuePaymentsScanJob{Payroll: payrollSvc, Enqueuer: enqueuer, NotifyTo: notifyTo, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDuePaymentsScan tasks.
func (j *DuePaymentsScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track("due_payments_scan")

	due, err := j.Payroll.DuePayments(ctx)
	if err != nil {
		j.Logger.Error("due payments scan", slog.Any("error", err))
		return tracker.End(err)
	}
	if len(due) == 0 {
		return tracker.End(nil)
	}

	var total float64
	lines := make([]string, 0, len(due))
	for _, d := range due {
		total += d.Remaining
		lines = append(lines, fmt.Sprintf("%s: %.2f remaining of %.2f", d.Employee.Name, d.Remaining, d.Monthly))
	}
	j.Logger.Info("due payments found",
		slog.Int("employees", len(due)),
		slog.Float64("total_remaining", total))

	if j.Enqueuer != nil && j.NotifyTo != "" {
		_, err = j.Enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.NotifyTo,
			Subject: fmt.Sprintf("%d employees still owed salary", len(due)),
			Body:    strings.Join(lines, "\n"),
		})
		if err != nil {
			j.Logger.Warn("enqueue due payments mail", slog.Any("error", err))
		}
	}
	return tracker.End(nil)
}
