package gemini

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/storyreel/storyreel/internal/domain"
)

// continuityPromptTemplate asks the model for a machine-readable verdict on
// one scene pair. The response contract matches verdictSchema.
const continuityPromptTemplate = `You are a film continuity supervisor. Two consecutive scenes from a
storyboard are described below. Decide whether the second scene continues
directly from the first, so that the last frame of the first clip should seed
the image-to-video generation of the second.

Previous scene ({{.Prev.SceneID}}):
- Title: {{.Prev.Title}}
- Location: {{.Prev.Location}}
- Time of day: {{.Prev.TimeOfDay}}
- Mood: {{.Prev.Mood}}
- Characters: {{.Prev.Characters}}

Current scene ({{.Curr.SceneID}}):
- Title: {{.Curr.Title}}
- Location: {{.Curr.Location}}
- Time of day: {{.Curr.TimeOfDay}}
- Mood: {{.Curr.Mood}}
- Characters: {{.Curr.Characters}}

Classify the relationship as one of:
- "same_scene": both shots show the same scene and moment
- "continuous_scene": the action continues directly from the previous shot
- "different_scene": the story cuts to a new scene

Respond with JSON only, no prose, in exactly this shape:
{"classification": "<same_scene|continuous_scene|different_scene>", "use_previous_frame": <true|false>, "confidence": <0.0-1.0>, "reason": "<one short sentence>"}`

// renderPrompt substitutes both scenes into the judgment prompt.
func (j *ContinuityJudge) renderPrompt(prev, curr domain.SceneMeta) (string, error) {
	data := promptData{
		Prev: flattenScene(prev),
		Curr: flattenScene(curr),
	}

	var promptBuffer bytes.Buffer
	if err := j.promptTemplate.Execute(&promptBuffer, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return promptBuffer.String(), nil
}

func flattenScene(meta domain.SceneMeta) promptScene {
	return promptScene{
		SceneID:    meta.SceneID,
		Title:      orUnknown(meta.Title),
		Location:   orUnknown(meta.Location),
		TimeOfDay:  orUnknown(meta.TimeOfDay),
		Mood:       orUnknown(meta.Mood),
		Characters: orUnknown(strings.Join(meta.Characters, ", ")),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
