package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storyreel/storyreel/internal/api/shared"
	"github.com/storyreel/storyreel/internal/task"
)

// TaskDirectory defines the task manager operations the HTTP layer needs.
type TaskDirectory interface {
	// GetStatus returns a snapshot of the task with the given ID
	GetStatus(id string) (task.Task, error)

	// GetResult returns the result of a finished task
	GetResult(id string) (any, error)

	// ListAll returns snapshots of every known task ordered by creation time
	ListAll() []task.Task

	// Cancel requests cancellation; the bool reports whether it was applied
	Cancel(id string) (bool, error)
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	tasks TaskDirectory
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks TaskDirectory) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.tasks.GetStatus(id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// ListTasks handles GET /api/tasks requests.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	all := h.tasks.ListAll()

	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(all))}
	for _, t := range all {
		resp.Tasks = append(resp.Tasks, taskToResponse(t))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetTaskResult handles GET /api/tasks/{id}/result requests. The result of a
// completed render task is its full report; tasks that are still running
// answer 409, cancelled ones 410, and failed ones surface their classified
// error.
func (h *TaskHandler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.tasks.GetResult(id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// CancelTask handles DELETE /api/tasks/{id} requests. Cancellation is
// asynchronous: 202 means the request was applied, not that the task has
// already stopped.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	applied, err := h.tasks.Cancel(id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if !applied {
		shared.RespondWithError(w, r, http.StatusConflict, "Task already finished")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, CancelResponse{TaskID: id, Cancelled: true})
}
