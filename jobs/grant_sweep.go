package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/grants"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// OrphanDeleter removes grants that point at deleted menus.
type OrphanDeleter interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

// AuditRecorder persists audit entries for sweep runs.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// GrantSweepJob removes orphaned grants left behind by menu deletions.
// The aggregator's joins already hide orphans from clients, so the sweep
// is hygiene rather than correctness.
type GrantSweepJob struct {
	Grants    OrphanDeleter
	Snapshots *grants.SnapshotStore
	Audit     AuditRecorder
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewGrantSweepJob wires dependencies for the sweep handler.
func NewGrantSweepJob(deleter OrphanDeleter, snapshots *grants.SnapshotStore, audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *GrantSweepJob {
	return &GrantSweepJob{Grants: deleter, Snapshots: snapshots, Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes grant sweep tasks.
func (j *GrantSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Grants == nil {
		return errors.New("grant sweep: handler not configured")
	}
	var payload GrantSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Requester == "" {
		payload.Requester = shared.SystemActor
	}

	tracker := j.metrics().Track(TaskGrantSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	removed, err := j.Grants.DeleteOrphans(ctx)
	if err != nil {
		resultErr = err
		logger.Error("delete orphans", slog.Any("error", err))
		return resultErr
	}
	if removed == 0 {
		logger.Info("no orphaned grants found")
		return resultErr
	}

	if j.Audit != nil {
		_ = j.Audit.Record(ctx, shared.AuditLog{
			ActorID:  payload.Requester,
			Action:   "grants:sweep",
			Entity:   "grant",
			EntityID: "orphans",
			Meta:     map[string]any{"removed": removed},
		})
	}
	logger.Info("completed grant sweep", slog.Int64("removed", removed))
	return resultErr
}

func (j *GrantSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGrantSweep))
	}
	return slog.Default().With(slog.String("job", TaskGrantSweep))
}

func (j *GrantSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
