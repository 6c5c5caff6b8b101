package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

const defaultAuditRetention = 90 * 24 * time.Hour

// AuditPruner deletes audit entries older than the retention window.
type AuditPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AuditCleanupJob prunes the audit trail on a schedule.
type AuditCleanupJob struct {
	Audit   AuditPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditCleanupJob wires dependencies for the cleanup handler.
func NewAuditCleanupJob(pruner AuditPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditCleanupJob {
	return &AuditCleanupJob{Audit: pruner, Logger: logger, Metrics: metrics}
}

// Handle processes audit cleanup tasks.
func (j *AuditCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("audit cleanup: handler not configured")
	}
	var payload AuditCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		payload.Retention = defaultAuditRetention
	}

	tracker := j.metrics().Track(TaskAuditCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Duration("retention", payload.Retention))
	removed, err := j.Audit.Cleanup(ctx, payload.Retention)
	if err != nil {
		resultErr = err
		logger.Error("cleanup audit logs", slog.Any("error", err))
		return resultErr
	}
	logger.Info("completed audit cleanup", slog.Int64("removed", removed))
	return resultErr
}

func (j *AuditCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditCleanup))
	}
	return slog.Default().With(slog.String("job", TaskAuditCleanup))
}

func (j *AuditCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
