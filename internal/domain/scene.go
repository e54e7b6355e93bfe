package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Scene-specific validation errors
var (
	// ErrEmptySceneID is returned when a scene job has no scene ID.
	ErrEmptySceneID = errors.New("scene ID cannot be empty")

	// ErrEmptySceneImage is returned when a scene job has no input image.
	ErrEmptySceneImage = errors.New("scene input image cannot be empty")

	// ErrInvalidDuration is returned when a clip duration is out of range.
	ErrInvalidDuration = errors.New("clip duration must be between 1 and 60 seconds")

	// ErrEmptySubShotLabel is returned when a sub-shot has no label.
	ErrEmptySubShotLabel = errors.New("sub-shot label cannot be empty")
)

// SceneMeta describes a scene for continuity judgment and prompt
// construction: where and when it takes place, its mood, who appears,
// and the first few lines of dialogue.
type SceneMeta struct {
	SceneID       string   `json:"scene_id"`
	Title         string   `json:"title,omitempty"`
	Location      string   `json:"location,omitempty"`
	TimeOfDay     string   `json:"time_of_day,omitempty"`
	Mood          string   `json:"mood,omitempty"`
	Characters    []string `json:"characters,omitempty"`
	DialogueLines []string `json:"dialogue_lines,omitempty"`
}

// GenerationParams are the knobs passed to the video generation service for
// one clip. A zero value in an override means "inherit".
type GenerationParams struct {
	DurationSeconds int    `json:"duration_seconds"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	Motion          string `json:"motion,omitempty"`
	Style           string `json:"style,omitempty"`
	NegativePrompt  string `json:"negative_prompt,omitempty"`
}

// Merge returns a copy of p with every non-zero field of override applied
// on top. Used to layer per-job caller overrides over scene defaults.
func (p GenerationParams) Merge(override GenerationParams) GenerationParams {
	merged := p
	if override.DurationSeconds != 0 {
		merged.DurationSeconds = override.DurationSeconds
	}
	if override.AspectRatio != "" {
		merged.AspectRatio = override.AspectRatio
	}
	if override.Motion != "" {
		merged.Motion = override.Motion
	}
	if override.Style != "" {
		merged.Style = override.Style
	}
	if override.NegativePrompt != "" {
		merged.NegativePrompt = override.NegativePrompt
	}
	return merged
}

// Validate checks the params are usable for a generation call.
func (p GenerationParams) Validate() error {
	if p.DurationSeconds < 1 || p.DurationSeconds > 60 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, p.DurationSeconds)
	}
	return nil
}

// SubShot is one dependent sub-clip of a hierarchical scene job. It is
// generated from a frame of the parent clip and concatenated after it.
type SubShot struct {
	Label  string           `json:"label"`
	Prompt string           `json:"prompt"`
	Params GenerationParams `json:"params,omitempty"`
}

// Validate checks the sub-shot has the fields generation requires.
func (s SubShot) Validate() error {
	if strings.TrimSpace(s.Label) == "" {
		return ErrEmptySubShotLabel
	}
	return nil
}

// SceneJob is one ordered element of a generation sequence: everything
// needed to produce a single clip (plus any dependent sub-shots). Position
// orders jobs within a run; SceneID identifies the scene across the run's
// report and the continuity cache.
type SceneJob struct {
	Position  int              `json:"position"`
	SceneID   string           `json:"scene_id"`
	Meta      SceneMeta        `json:"meta"`
	ImagePath string           `json:"image_path"`
	Params    GenerationParams `json:"params"`
	Overrides GenerationParams `json:"overrides,omitempty"`
	SubShots  []SubShot        `json:"sub_shots,omitempty"`
}

// Validate checks the job has everything the pipeline needs.
func (j SceneJob) Validate() error {
	if strings.TrimSpace(j.SceneID) == "" {
		return ErrEmptySceneID
	}
	if strings.TrimSpace(j.ImagePath) == "" {
		return fmt.Errorf("%w: scene %s", ErrEmptySceneImage, j.SceneID)
	}
	if err := j.ResolvedParams().Validate(); err != nil {
		return fmt.Errorf("scene %s: %w", j.SceneID, err)
	}
	for _, sub := range j.SubShots {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("scene %s: %w", j.SceneID, err)
		}
	}
	return nil
}

// ResolvedParams returns the job's params with caller overrides applied.
func (j SceneJob) ResolvedParams() GenerationParams {
	return j.Params.Merge(j.Overrides)
}

// BuildPrompt renders the scene metadata into the text prompt sent to the
// generation service. Dialogue lines are included only when requested, so a
// dialogue-rejected retry can rebuild the prompt without them.
func (j SceneJob) BuildPrompt(includeDialogue bool) string {
	var b strings.Builder
	b.WriteString("Cinematic video clip.")
	if j.Meta.Title != "" {
		b.WriteString(" Scene: ")
		b.WriteString(j.Meta.Title)
		b.WriteString(".")
	}
	if j.Meta.Location != "" {
		b.WriteString(" Location: ")
		b.WriteString(j.Meta.Location)
		b.WriteString(".")
	}
	if j.Meta.TimeOfDay != "" {
		b.WriteString(" Time of day: ")
		b.WriteString(j.Meta.TimeOfDay)
		b.WriteString(".")
	}
	if j.Meta.Mood != "" {
		b.WriteString(" Mood: ")
		b.WriteString(j.Meta.Mood)
		b.WriteString(".")
	}
	if len(j.Meta.Characters) > 0 {
		b.WriteString(" Characters: ")
		b.WriteString(strings.Join(j.Meta.Characters, ", "))
		b.WriteString(".")
	}
	params := j.ResolvedParams()
	if params.Motion != "" {
		b.WriteString(" Camera motion: ")
		b.WriteString(params.Motion)
		b.WriteString(".")
	}
	if params.Style != "" {
		b.WriteString(" Visual style: ")
		b.WriteString(params.Style)
		b.WriteString(".")
	}
	if includeDialogue && len(j.Meta.DialogueLines) > 0 {
		b.WriteString(" Spoken dialogue: ")
		for i, line := range j.Meta.DialogueLines {
			if i > 0 {
				b.WriteString(" / ")
			}
			b.WriteString(quoteLine(line))
		}
		b.WriteString(".")
	}
	return b.String()
}

// quoteLine wraps a dialogue line in straight quotes without escaping,
// which reads better in prompts than strconv.Quote output.
func quoteLine(s string) string {
	return `"` + strings.TrimSpace(s) + `"`
}
