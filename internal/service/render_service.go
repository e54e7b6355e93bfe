package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/pipeline"
	"github.com/storyreel/storyreel/internal/script"
	"github.com/storyreel/storyreel/internal/task"
)

// Renderer runs a validated render request to completion.
type Renderer interface {
	Run(ctx context.Context, req *domain.RenderRequest, reporter pipeline.ProgressReporter) (*domain.RenderReport, error)
}

// TaskSubmitter defines the interface for scheduling background tasks.
type TaskSubmitter interface {
	// Submit registers the operation and returns its task ID without waiting
	// for execution
	Submit(ctx context.Context, taskType string, op task.Operation) (string, error)
}

// RenderSubmission is the synchronous answer to a render submission: the
// task handle to poll and the validated request that will be rendered.
type RenderSubmission struct {
	TaskID  string                `json:"task_id"`
	Request *domain.RenderRequest `json:"request"`
}

// RenderService provides render-related operations.
type RenderService interface {
	// SubmitScript parses a screenplay script, validates the resulting render
	// request, and schedules it as a background task.
	SubmitScript(ctx context.Context, scriptText string, opts domain.RenderOptions) (*RenderSubmission, error)

	// SubmitScenes validates pre-built scene jobs and schedules them as a
	// background task.
	SubmitScenes(ctx context.Context, title string, scenes []domain.SceneJob, opts domain.RenderOptions) (*RenderSubmission, error)

	// RenderScript parses and renders a script synchronously, bypassing the
	// task manager. Used by the one-shot CLI.
	RenderScript(ctx context.Context, scriptText string, opts domain.RenderOptions, reporter pipeline.ProgressReporter) (*domain.RenderReport, error)
}

// RenderServiceError wraps errors from the render service with context.
type RenderServiceError struct {
	// Operation is the operation that failed (e.g., "submit_render")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for RenderServiceError.
func (e *RenderServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("render service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RenderServiceError) Unwrap() error {
	return e.Err
}

// renderServiceImpl implements the RenderService interface
type renderServiceImpl struct {
	renderer  Renderer
	submitter TaskSubmitter
	logger    *slog.Logger
}

// NewRenderService creates a new RenderService.
// It returns an error if any of the required dependencies are nil.
func NewRenderService(renderer Renderer, submitter TaskSubmitter, logger *slog.Logger) (RenderService, error) {
	if renderer == nil {
		return nil, &RenderServiceError{
			Operation: "create_service",
			Message:   "renderer cannot be nil",
		}
	}
	if submitter == nil {
		return nil, &RenderServiceError{
			Operation: "create_service",
			Message:   "submitter cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &renderServiceImpl{
		renderer:  renderer,
		submitter: submitter,
		logger:    logger.With("component", "render_service"),
	}, nil
}

// SubmitScript parses the script, builds a render request from its scenes,
// and schedules the render as a background task.
func (s *renderServiceImpl) SubmitScript(ctx context.Context, scriptText string, opts domain.RenderOptions) (*RenderSubmission, error) {
	scr, err := s.parse(scriptText)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, scr.Title, scr.Scenes, opts)
}

// SubmitScenes validates caller-provided scene jobs and schedules the render
// as a background task.
func (s *renderServiceImpl) SubmitScenes(ctx context.Context, title string, scenes []domain.SceneJob, opts domain.RenderOptions) (*RenderSubmission, error) {
	return s.submit(ctx, title, scenes, opts)
}

// RenderScript parses and renders synchronously on the caller's goroutine.
func (s *renderServiceImpl) RenderScript(ctx context.Context, scriptText string, opts domain.RenderOptions, reporter pipeline.ProgressReporter) (*domain.RenderReport, error) {
	scr, err := s.parse(scriptText)
	if err != nil {
		return nil, err
	}
	req, err := domain.NewRenderRequest(scr.Title, scr.Scenes, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("starting synchronous render",
		"request_id", req.ID,
		"scenes", len(req.Scenes))
	return s.renderer.Run(ctx, req, reporter)
}

// parse turns script text into scenes, mapping parse failures onto the
// domain's format sentinel so the API layer can classify them.
func (s *renderServiceImpl) parse(scriptText string) (*script.Script, error) {
	scr, err := script.ParseString(scriptText)
	if err != nil {
		if errors.Is(err, domain.ErrNoScenes) {
			return nil, err
		}
		s.logger.Warn("script rejected", "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidFormat, err)
	}
	return scr, nil
}

// submit validates the request and hands it to the task manager. The task's
// result is the *domain.RenderReport produced by the pipeline.
func (s *renderServiceImpl) submit(ctx context.Context, title string, scenes []domain.SceneJob, opts domain.RenderOptions) (*RenderSubmission, error) {
	req, err := domain.NewRenderRequest(title, scenes, opts)
	if err != nil {
		s.logger.Warn("render request rejected", "error", err)
		return nil, err
	}

	taskID, err := s.submitter.Submit(ctx, task.TypeRender, func(ctx context.Context, report task.Reporter) (any, error) {
		return s.renderer.Run(ctx, req, report)
	})
	if err != nil {
		s.logger.Error("failed to schedule render task",
			"error", err,
			"request_id", req.ID)
		return nil, &RenderServiceError{
			Operation: "submit_render",
			Message:   "failed to schedule render task",
			Err:       err,
		}
	}

	s.logger.Info("render task submitted",
		"task_id", taskID,
		"request_id", req.ID,
		"scenes", len(req.Scenes))
	return &RenderSubmission{TaskID: taskID, Request: req}, nil
}
