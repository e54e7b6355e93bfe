package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storyreel/storyreel/internal/domain"
)

// TaskEvent represents one task lifecycle transition.
type TaskEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task that transitioned.
	TaskID string `json:"task_id"`

	// TaskType is the task's type tag.
	TaskType string `json:"task_type"`

	// Status is the status the task transitioned into.
	Status string `json:"status"`

	// Progress is the task's progress at emission time (0-100).
	Progress int `json:"progress"`

	// Err carries the structured failure for failed transitions, nil
	// otherwise.
	Err *domain.ServiceError `json:"error,omitempty"`

	// OccurredAt is the timestamp when the transition happened.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent creates a TaskEvent for a task transition.
func NewTaskEvent(taskID, taskType, status string, progress int, svcErr *domain.ServiceError) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		TaskID:     taskID,
		TaskType:   taskType,
		Status:     status,
		Progress:   progress,
		Err:        svcErr,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that observe task
// lifecycle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that publish task
// lifecycle events. This allows the task manager to notify observers
// without direct knowledge of them.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
