package task

import (
	"context"
	"log/slog"

	"github.com/storyreel/storyreel/internal/events"
)

// TaskEventLogger implements the events.EventHandler interface and writes
// task lifecycle transitions to the structured log. It is registered on the
// process-wide emitter so every status change shows up in the log stream
// regardless of which component initiated it.
type TaskEventLogger struct {
	logger *slog.Logger
}

// NewTaskEventLogger creates a handler that logs task lifecycle events.
func NewTaskEventLogger(logger *slog.Logger) *TaskEventLogger {
	return &TaskEventLogger{
		logger: logger.With("component", "task_event_logger"),
	}
}

// HandleEvent logs the transition at a level matching its severity.
func (h *TaskEventLogger) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	attrs := []any{
		"task_id", event.TaskID,
		"task_type", event.TaskType,
		"status", event.Status,
		"progress", event.Progress,
		"event_id", event.ID,
	}

	switch Status(event.Status) {
	case StatusFailed:
		if event.Err != nil {
			attrs = append(attrs, "error", event.Err.Message, "kind", event.Err.Kind)
		}
		h.logger.Error("task failed", attrs...)
	case StatusCancelled:
		h.logger.Warn("task cancelled", attrs...)
	case StatusCompleted:
		h.logger.Info("task completed", attrs...)
	case StatusProcessing:
		h.logger.Info("task processing", attrs...)
	default:
		h.logger.Debug("task status changed", attrs...)
	}
	return nil
}

// Ensure TaskEventLogger implements events.EventHandler
var _ events.EventHandler = (*TaskEventLogger)(nil)
