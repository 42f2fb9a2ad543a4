package stores

import (
	"context"
	"time"
)

// RunStatus represents the status of a build run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Outcome of one action
type Outcome string

const (
	OutcomeBuilt  Outcome = "built"
	OutcomeFailed Outcome = "failed"
)

// Run is one invocation of a build session
type Run struct {
	ID          string     `json:"id"`
	Root        string     `json:"root"`
	Targets     []string   `json:"targets"`
	Status      RunStatus  `json:"status"`
	Built       int        `json:"built"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// TargetBuild records one action run against a target
type TargetBuild struct {
	ID        int64         `json:"id"`
	RunID     string        `json:"run_id"`
	Zone      string        `json:"zone"`
	Target    string        `json:"target"`
	Action    string        `json:"action"`
	Outcome   Outcome       `json:"outcome"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// RunError is one error reported at the end of a run
type RunError struct {
	ID      int64             `json:"id"`
	RunID   string            `json:"run_id"`
	Kind    string            `json:"kind"`
	Details string            `json:"details"`
	Fields  map[string]string `json:"fields,omitempty"`
	Fatal   bool              `json:"fatal"`
}

// Store defines the build history operations
type Store interface {
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error

	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, status RunStatus, built int, errs []RunError) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	RecordTargetBuild(ctx context.Context, build *TargetBuild) error
	ListTargetBuilds(ctx context.Context, runID string) ([]*TargetBuild, error)
	LastBuild(ctx context.Context, target string) (*TargetBuild, error)

	ListErrors(ctx context.Context, runID string) ([]*RunError, error)
}
