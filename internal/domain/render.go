package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RenderOptions carry the per-request orchestration settings, resolved
// against server defaults before the pipeline runs.
type RenderOptions struct {
	// Continuity enables sequential processing with frame hand-off between
	// adjacent scenes.
	Continuity bool `json:"continuity"`

	// SmartJudge enables the LLM-backed continuity judgment. When false,
	// the resolver's configured default applies to every adjacent pair.
	SmartJudge bool `json:"smart_judge"`

	// MaxConcurrentClips bounds simultaneous generation calls when
	// continuity is disabled (and sub-shot generation in either mode).
	MaxConcurrentClips int `json:"max_concurrent_clips"`
}

// RenderRequest is a validated, ordered set of scene jobs submitted for
// rendering as one task.
type RenderRequest struct {
	ID        uuid.UUID     `json:"id"`
	Title     string        `json:"title,omitempty"`
	Scenes    []SceneJob    `json:"scenes"`
	Options   RenderOptions `json:"options"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewRenderRequest creates a RenderRequest from parsed scenes, assigning a
// fresh ID and validating every job. Returns an error if validation fails.
func NewRenderRequest(title string, scenes []SceneJob, opts RenderOptions) (*RenderRequest, error) {
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}
	for i := range scenes {
		scenes[i].Position = i
		if err := scenes[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return &RenderRequest{
		ID:        uuid.New(),
		Title:     title,
		Scenes:    scenes,
		Options:   opts,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// GenerationRequest is one call to the image-to-video service. ImagePaths
// holds the primary input image, optionally followed by a continuity
// reference frame.
type GenerationRequest struct {
	SceneID    string
	Prompt     string
	ImagePaths []string
	Params     GenerationParams
}

// ArtifactHandle references a generated artifact held by the provider,
// to be fetched with a download call.
type ArtifactHandle struct {
	URI      string `json:"uri"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// SubOutcome is the result of one sub-shot generation attempt.
type SubOutcome struct {
	Label    string        `json:"label"`
	Success  bool          `json:"success"`
	Artifact string        `json:"artifact,omitempty"`
	Err      *ServiceError `json:"error,omitempty"`
}

// GenerationOutcome is the result of attempting one SceneJob. A batch of N
// jobs always yields exactly N outcomes in input order, whatever failed.
type GenerationOutcome struct {
	SceneID  string `json:"scene_id"`
	Position int    `json:"position"`
	Success  bool   `json:"success"`

	// Artifact is the final clip path when Success is true (post-mux for
	// hierarchical jobs).
	Artifact string `json:"artifact,omitempty"`

	// Params are the generation parameters actually used, after overrides
	// and any fallback adjustments.
	Params GenerationParams `json:"params"`

	// Attempts counts generation attempts for the parent clip.
	Attempts int `json:"attempts,omitempty"`

	// Err is set when Success is false.
	Err *ServiceError `json:"error,omitempty"`

	// Hierarchical job details. ParentArtifact is set whenever the parent
	// clip was produced, including when the later mux step failed.
	ParentArtifact string       `json:"parent_artifact,omitempty"`
	SubOutcomes    []SubOutcome `json:"sub_outcomes,omitempty"`
	FailedSubItems []string     `json:"failed_sub_items,omitempty"`
}

// RenderReport aggregates a pipeline run: one outcome per input job in input
// order, plus the success/failure tallies callers use without walking the
// list.
type RenderReport struct {
	Outcomes     []GenerationOutcome `json:"outcomes"`
	Succeeded    int                 `json:"succeeded"`
	Failed       int                 `json:"failed"`
	FailedScenes []string            `json:"failed_scenes,omitempty"`
	Elapsed      time.Duration       `json:"elapsed_ns"`
}

// BuildReport derives the aggregate tallies from a complete outcome list.
func BuildReport(outcomes []GenerationOutcome, elapsed time.Duration) *RenderReport {
	report := &RenderReport{
		Outcomes: outcomes,
		Elapsed:  elapsed,
	}
	for _, o := range outcomes {
		if o.Success {
			report.Succeeded++
		} else {
			report.Failed++
			report.FailedScenes = append(report.FailedScenes, o.SceneID)
		}
	}
	return report
}
