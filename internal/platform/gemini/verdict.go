package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storyreel/storyreel/internal/continuity"
)

// Keyword signals used when the model ignores the JSON contract. Negative
// signals are checked first: an ambiguous answer must not force continuity.
var (
	negativeSignals = []string{
		"different_scene",
		"different scene",
		"no continuity",
		"new scene",
		"unrelated",
		"cut to",
	}
	positiveSignals = []string{
		"same_scene",
		"same scene",
		"continuous_scene",
		"continuous",
		"continues",
		"use the previous frame",
		"use previous",
	}
)

// parseVerdict turns raw model output into a judgment. It first tries the
// JSON contract, then the keyword heuristics, and reports
// ErrUnparsableVerdict when both fail.
func parseVerdict(raw string) (continuity.Judgment, error) {
	cleaned := stripCodeFences(raw)

	var verdict verdictSchema
	if err := json.Unmarshal([]byte(cleaned), &verdict); err == nil {
		if classification, ok := classificationFromString(verdict.Classification); ok {
			return continuity.Judgment{
				UsePrevFrame:   verdict.UsePreviousFrame,
				Classification: classification,
				Confidence:     clampConfidence(verdict.Confidence),
				Reason:         verdict.Reason,
			}, nil
		}
	}

	if judgment, ok := keywordVerdict(cleaned); ok {
		return judgment, nil
	}

	return continuity.Judgment{}, fmt.Errorf("%w: %q", ErrUnparsableVerdict, truncate(raw, 120))
}

func classificationFromString(s string) (continuity.Classification, bool) {
	switch continuity.Classification(strings.TrimSpace(strings.ToLower(s))) {
	case continuity.ClassificationSameScene:
		return continuity.ClassificationSameScene, true
	case continuity.ClassificationContinuousScene:
		return continuity.ClassificationContinuousScene, true
	case continuity.ClassificationDifferentScene:
		return continuity.ClassificationDifferentScene, true
	default:
		return continuity.ClassificationUnknown, false
	}
}

// keywordVerdict scans free-form model output for continuity signals.
func keywordVerdict(raw string) (continuity.Judgment, bool) {
	lowered := strings.ToLower(raw)

	for _, signal := range negativeSignals {
		if strings.Contains(lowered, signal) {
			return continuity.Judgment{
				UsePrevFrame:   false,
				Classification: continuity.ClassificationDifferentScene,
				Confidence:     0.5,
				Reason:         fmt.Sprintf("keyword heuristic matched %q", signal),
			}, true
		}
	}
	for _, signal := range positiveSignals {
		if strings.Contains(lowered, signal) {
			return continuity.Judgment{
				UsePrevFrame:   true,
				Classification: continuity.ClassificationContinuousScene,
				Confidence:     0.5,
				Reason:         fmt.Sprintf("keyword heuristic matched %q", signal),
			}, true
		}
	}
	return continuity.Judgment{}, false
}

// stripCodeFences removes a surrounding markdown code block, which models
// add despite the JSON-only instruction.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
