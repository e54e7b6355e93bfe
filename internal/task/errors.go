package task

import "errors"

// Store and manager errors
var (
	// ErrTaskNotFound indicates the requested task ID does not exist in the store
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskExists indicates a task with the same ID has already been saved
	ErrTaskExists = errors.New("task already exists")

	// ErrInvalidTransition indicates a status change that the task lifecycle
	// does not permit, such as completing a task that never started
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrTaskCancelled indicates the task was cancelled before producing a result
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrTaskNotFinished indicates the task has not reached a terminal status yet
	ErrTaskNotFinished = errors.New("task not finished")

	// ErrManagerStopped indicates the manager is shutting down and no longer
	// accepts submissions
	ErrManagerStopped = errors.New("task manager stopped")
)
