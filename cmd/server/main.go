// Package main implements the entry point for the StoryReel render server,
// which turns scene scripts into finished videos through an image-to-video
// provider and tracks each render as a background task.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/storyreel/storyreel/internal/config"
	"github.com/storyreel/storyreel/internal/platform/logger"
)

// main is the entry point for the storyreel server. It loads configuration,
// sets up logging, wires the application dependencies, and runs the HTTP
// server until a shutdown signal arrives.
func main() {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// run performs initialization and hands control to the application.
// Split from main so initialization errors flow back as values.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, logCleanup := logger.Setup(cfg.Server)
	defer func() {
		if err := logCleanup(); err != nil {
			log.Printf("log cleanup failed: %v", err)
		}
	}()

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)
	if cfg.Video.APIKey != "" {
		appLogger.Debug("Video provider configuration", "api_key_present", true)
	}
	if cfg.LLM.GeminiAPIKey != "" {
		appLogger.Debug("LLM configuration", "gemini_api_key_present", true)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
