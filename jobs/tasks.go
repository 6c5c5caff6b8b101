package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCapabilityWarmup pre-aggregates capability snapshots per role.
	TaskCapabilityWarmup = "capability:warmup"
	// TaskGrantSweep deletes grants whose menu no longer exists.
	TaskGrantSweep = "grants:sweep"
	// TaskAuditCleanup prunes audit log entries past the retention window.
	TaskAuditCleanup = "audit:cleanup"
)

// CapabilityWarmupPayload selects which roles get warmed.
type CapabilityWarmupPayload struct {
	RoleScope string `json:"role_scope"`
}

// NewCapabilityWarmupTask constructs an Asynq task.
func NewCapabilityWarmupTask(roleScope string) (*asynq.Task, error) {
	data, err := json.Marshal(CapabilityWarmupPayload{RoleScope: roleScope})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCapabilityWarmup, data), nil
}

// GrantSweepPayload carries options for the orphan sweep.
type GrantSweepPayload struct {
	Requester string `json:"requester"`
}

// NewGrantSweepTask constructs an Asynq task.
func NewGrantSweepTask(requester string) (*asynq.Task, error) {
	data, err := json.Marshal(GrantSweepPayload{Requester: requester})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGrantSweep, data), nil
}

// AuditCleanupPayload sets the retention window for audit pruning.
type AuditCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditCleanupTask constructs an Asynq task.
func NewAuditCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}
