package task

import (
	"context"
	"time"

	"github.com/storyreel/storyreel/internal/domain"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal tasks never change
// status again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task type constants
const (
	// TypeRender represents the task type for rendering a script into a video
	TypeRender = "render"
)

// Task is an immutable snapshot of a unit of background work. Store methods
// return copies; callers never observe a task mid-mutation.
type Task struct {
	// ID is the task's unique identifier, "<type>-<uuid>"
	ID string

	// Type is the task type identifier, e.g. TypeRender
	Type string

	// Status is the lifecycle state at the time of the snapshot
	Status Status

	// Progress is the most recent completion estimate, 0-100
	Progress int

	// Message is a short human-readable note about the current stage
	Message string

	// Result holds the operation's return value once the task completed
	Result any

	// Err holds the classified failure once the task failed
	Err *domain.ServiceError

	CreatedAt time.Time
	StartedAt time.Time
	UpdatedAt time.Time
	EndedAt   time.Time
}

// Reporter lets a running operation publish progress without access to the
// store or other tasks.
type Reporter interface {
	// Progress records a completion estimate (clamped to 0-100) and a short
	// stage description for the running task
	Progress(pct int, message string)
}

// Operation is the unit of work executed by the manager. The context is
// cancelled when the task is cancelled or the manager stops; operations are
// expected to observe it and return promptly.
type Operation func(ctx context.Context, report Reporter) (any, error)
