package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/grants"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/roles"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RoleLister enumerates roles eligible for snapshot warmup.
type RoleLister interface {
	List(ctx context.Context) ([]roles.Role, error)
}

// CapabilityWarmupJob pre-aggregates capability snapshots so the first
// request after a deploy or snapshot expiry does not pay the join cost.
type CapabilityWarmupJob struct {
	Aggregator *grants.Aggregator
	Roles      RoleLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewCapabilityWarmupJob wires dependencies for the warmup handler.
func NewCapabilityWarmupJob(aggregator *grants.Aggregator, lister RoleLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *CapabilityWarmupJob {
	return &CapabilityWarmupJob{Aggregator: aggregator, Roles: lister, Logger: logger, Metrics: metrics}
}

// Handle processes capability warmup tasks.
func (j *CapabilityWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Aggregator == nil || j.Roles == nil {
		return errors.New("capability warmup: handler not configured")
	}
	var payload CapabilityWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RoleScope == "" {
		payload.RoleScope = "active"
	}

	tracker := j.metrics().Track(TaskCapabilityWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("role_scope", payload.RoleScope))
	logger.Info("starting capability warmup")

	all, err := j.Roles.List(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list roles", slog.Any("error", err))
		return resultErr
	}

	warmed := 0
	for _, role := range all {
		if payload.RoleScope == "active" && !role.IsActive {
			continue
		}
		roleCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := j.Aggregator.Capabilities(roleCtx, role.Slug)
		cancel()
		if err != nil {
			resultErr = err
			logger.Error("warm role", slog.String("role", role.Slug), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed capability warmup", slog.Int("roles", warmed))
	return resultErr
}

func (j *CapabilityWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCapabilityWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCapabilityWarmup))
}

func (j *CapabilityWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
