package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storyreel/storyreel/internal/config"
	"github.com/storyreel/storyreel/internal/continuity"
	"github.com/storyreel/storyreel/internal/events"
	"github.com/storyreel/storyreel/internal/pipeline"
	"github.com/storyreel/storyreel/internal/platform/ffmpeg"
	"github.com/storyreel/storyreel/internal/platform/gemini"
	"github.com/storyreel/storyreel/internal/platform/veo"
	"github.com/storyreel/storyreel/internal/ratelimit"
	"github.com/storyreel/storyreel/internal/retry"
	"github.com/storyreel/storyreel/internal/service"
	"github.com/storyreel/storyreel/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger

	// Event system
	eventEmitter events.EventEmitter

	// Task handling
	taskManager *task.Manager

	// Render orchestration
	renderService service.RenderService
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration and logger
// that must be established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	// Initialize the event emitter and register the lifecycle logger so
	// every task transition lands in the structured log.
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(task.NewTaskEventLogger(logger))
	app.eventEmitter = emitter

	// Initialize the task manager
	app.taskManager = task.NewManager(task.ManagerConfig{
		MaxConcurrentTasks: cfg.Task.MaxConcurrentTasks,
		RetentionPeriod:    cfg.Task.Retention(),
		SweepInterval:      cfg.Task.SweepInterval(),
	}, app.eventEmitter, logger)
	app.taskManager.Start()
	logger.Info("Task manager started",
		"max_concurrent_tasks", cfg.Task.MaxConcurrentTasks,
		"retention_hours", cfg.Task.RetentionHours)

	// Create the video generation client
	generator, err := veo.NewClient(veo.Options{
		APIKey:       cfg.Video.APIKey,
		BaseURL:      cfg.Video.BaseURL,
		Model:        cfg.Video.ModelName,
		PollInterval: cfg.Video.PollInterval(),
		PollTimeout:  cfg.Video.PollTimeout(),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize video client: %w", err)
	}
	logger.Info("Video generation client initialized", "model", cfg.Video.ModelName)

	// Create the media tool for frame extraction and concatenation
	media := ffmpeg.NewTool(ffmpeg.Options{
		BinaryPath:  cfg.Media.FFmpegPath,
		WorkDir:     cfg.Media.WorkDir,
		FrameWidth:  cfg.Media.FrameWidth,
		FrameHeight: cfg.Media.FrameHeight,
		Logger:      logger,
	})

	// Build the render pipeline with its optional collaborators
	limiter, err := setupRateLimiter(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	judge := setupContinuityJudge(ctx, cfg, logger)

	renderPipeline, err := pipeline.New(pipeline.Deps{
		Generator: generator,
		Frames:    media,
		Muxer:     media,
		Judge:     judge,
		Limiter:   limiter,
	}, pipeline.Config{
		MaxConcurrentClips: cfg.Generation.MaxConcurrentClips,
		FrameIndex:         cfg.Generation.FrameIndex,
		OutputDir:          cfg.Video.OutputDir,
		DefaultUseFrame:    cfg.Continuity.DefaultUseFrame,
		Retry: retry.Policy{
			MaxAttempts:   cfg.Generation.Retry.MaxAttempts,
			BaseDelay:     cfg.Generation.Retry.BaseDelay(),
			BackoffFactor: cfg.Generation.Retry.BackoffFactor,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}

	// Initialize the render service
	app.renderService, err = service.NewRenderService(renderPipeline, app.taskManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create render service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupRateLimiter builds the provider rate limiter, or returns nil when
// rate limiting is disabled.
func setupRateLimiter(cfg *config.Config, logger *slog.Logger) (pipeline.RateLimiter, error) {
	if !cfg.Generation.RateLimit.Enabled {
		logger.Info("Provider rate limiting disabled")
		return nil, nil
	}
	limiter, err := ratelimit.New(cfg.Generation.RateLimit.MaxRequests, cfg.Generation.RateLimit.Window())
	if err != nil {
		return nil, err
	}
	logger.Info("Provider rate limiter initialized",
		"max_requests", cfg.Generation.RateLimit.MaxRequests,
		"window_seconds", cfg.Generation.RateLimit.WindowSeconds)
	return limiter, nil
}

// setupContinuityJudge builds the LLM continuity judge when smart judging is
// configured. Judge construction failures degrade to the default continuity
// behavior rather than blocking startup: renders still work, every scene
// pair just resolves to the configured default.
func setupContinuityJudge(ctx context.Context, cfg *config.Config, logger *slog.Logger) continuity.Judge {
	if !cfg.Continuity.SmartJudge {
		return nil
	}
	if cfg.LLM.GeminiAPIKey == "" {
		logger.Warn("Smart continuity judging enabled but no Gemini API key configured, using default continuity")
		return nil
	}
	judge, err := gemini.NewContinuityJudge(ctx, logger, cfg.LLM)
	if err != nil {
		logger.Warn("Continuity judge unavailable, using default continuity", "error", err)
		return nil
	}
	logger.Info("Continuity judge initialized", "model", cfg.LLM.ModelName)
	return judge
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop the task manager, cancelling in-flight renders
	if app.taskManager != nil {
		app.taskManager.Stop()
	}

	app.logger.Info("Application shutdown completed")
}
