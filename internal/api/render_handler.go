package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/storyreel/storyreel/internal/api/shared"
	"github.com/storyreel/storyreel/internal/service"
)

// RenderHandler handles render-related HTTP requests
type RenderHandler struct {
	renderService service.RenderService
	validator     *validator.Validate
}

// NewRenderHandler creates a new RenderHandler
func NewRenderHandler(renderService service.RenderService) *RenderHandler {
	return &RenderHandler{
		renderService: renderService,
		validator:     validator.New(),
	}
}

// SubmitRender handles POST /api/renders requests. The render runs as a
// background task; the response carries the task ID to poll.
func (h *RenderHandler) SubmitRender(w http.ResponseWriter, r *http.Request) {
	var req SubmitRenderRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	submission, err := h.submit(r, req)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, RenderSubmissionResponse{
		TaskID:    submission.TaskID,
		RequestID: submission.Request.ID.String(),
		Title:     submission.Request.Title,
		Scenes:    len(submission.Request.Scenes),
		Options:   submission.Request.Options,
		CreatedAt: submission.Request.CreatedAt,
	})
}

func (h *RenderHandler) submit(r *http.Request, req SubmitRenderRequest) (*service.RenderSubmission, error) {
	if req.Script != "" {
		return h.renderService.SubmitScript(r.Context(), req.Script, req.Options)
	}
	return h.renderService.SubmitScenes(r.Context(), req.Title, req.Scenes, req.Options)
}
