package api

import (
	"time"

	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/task"
)

// SubmitRenderRequest represents the request body for submitting a render.
// Exactly one of Script or Scenes must be provided: a screenplay script to
// parse, or pre-built scene jobs.
type SubmitRenderRequest struct {
	Script  string               `json:"script,omitempty"  validate:"required_without=Scenes,excluded_with=Scenes"`
	Title   string               `json:"title,omitempty"`
	Scenes  []domain.SceneJob    `json:"scenes,omitempty"`
	Options domain.RenderOptions `json:"options"`
}

// RenderSubmissionResponse represents the response data for an accepted
// render submission.
type RenderSubmissionResponse struct {
	TaskID    string               `json:"task_id"`
	RequestID string               `json:"request_id"`
	Title     string               `json:"title,omitempty"`
	Scenes    int                  `json:"scenes"`
	Options   domain.RenderOptions `json:"options"`
	CreatedAt time.Time            `json:"created_at"`
}

// TaskResponse represents the response data for a task snapshot.
type TaskResponse struct {
	ID        string               `json:"id"`
	Type      string               `json:"type"`
	Status    string               `json:"status"`
	Progress  int                  `json:"progress"`
	Message   string               `json:"message,omitempty"`
	Error     *domain.ServiceError `json:"error,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
}

// TaskListResponse represents the response data for a task listing.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

// CancelResponse represents the response data for a cancellation request.
type CancelResponse struct {
	TaskID    string `json:"task_id"`
	Cancelled bool   `json:"cancelled"`
}

// taskToResponse converts a task snapshot to its response DTO.
func taskToResponse(t task.Task) TaskResponse {
	resp := TaskResponse{
		ID:        t.ID,
		Type:      t.Type,
		Status:    string(t.Status),
		Progress:  t.Progress,
		Message:   t.Message,
		Error:     t.Err,
		CreatedAt: t.CreatedAt,
	}
	if !t.StartedAt.IsZero() {
		started := t.StartedAt
		resp.StartedAt = &started
	}
	if !t.EndedAt.IsZero() {
		ended := t.EndedAt
		resp.EndedAt = &ended
	}
	return resp
}
