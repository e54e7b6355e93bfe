package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/storyreel/storyreel/internal/api"
	apiMiddleware "github.com/storyreel/storyreel/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. It accepts the application dependencies to create handlers
// and register routes. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(
		apiMiddleware.NewTraceMiddleware(app.logger),
	) // Add trace IDs for improved error handling

	// Create API handlers using the application's services
	renderHandler := api.NewRenderHandler(app.renderService)
	taskHandler := api.NewTaskHandler(app.taskManager)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		// Render submission
		r.Post("/renders", renderHandler.SubmitRender)

		// Task tracking endpoints
		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Get("/tasks/{id}/result", taskHandler.GetTaskResult)
		r.Delete("/tasks/{id}", taskHandler.CancelTask)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
