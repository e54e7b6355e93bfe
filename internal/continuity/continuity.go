package continuity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storyreel/storyreel/internal/domain"
)

// Classification labels the relationship between two consecutive scenes.
type Classification string

// Possible classification values
const (
	// ClassificationSameScene means both shots show the same scene and moment
	ClassificationSameScene Classification = "same_scene"

	// ClassificationContinuousScene means the action continues directly from
	// the previous shot
	ClassificationContinuousScene Classification = "continuous_scene"

	// ClassificationDifferentScene means the story cuts to a new scene
	ClassificationDifferentScene Classification = "different_scene"

	// ClassificationUnknown means no judge examined the pair
	ClassificationUnknown Classification = "unknown"
)

// Judgment is the outcome of a continuity decision for one scene pair.
type Judgment struct {
	// UsePrevFrame reports whether the previous clip's last frame should seed
	// the next generation
	UsePrevFrame bool

	// Classification labels the scene relationship
	Classification Classification

	// Confidence is the judge's self-reported certainty, 0-1
	Confidence float64

	// Reason is a short explanation, either from the judge or describing the
	// fallback that produced the judgment
	Reason string
}

// Judge decides whether two consecutive scenes are visually continuous.
type Judge interface {
	// JudgeContinuity examines the pair and returns a judgment.
	// Errors are soft: the resolver falls back to its default.
	JudgeContinuity(ctx context.Context, prev, curr domain.SceneMeta) (Judgment, error)
}

// pairKey identifies an ordered scene pair in the cache.
type pairKey struct {
	prevID string
	currID string
}

// Resolver answers continuity questions for a single pipeline run. Judgments
// are cached by scene pair, so retries and repeated lookups never re-invoke
// the judge. A Resolver is not safe for concurrent use; the sequential
// pipeline that owns it asks one question at a time.
type Resolver struct {
	judge      Judge
	defaultUse bool
	cache      map[pairKey]Judgment
	logger     *slog.Logger
}

// NewResolver creates a resolver for one run. The judge may be nil, in which
// case every pair resolves to the default without any external call.
func NewResolver(judge Judge, defaultUse bool, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		judge:      judge,
		defaultUse: defaultUse,
		cache:      make(map[pairKey]Judgment),
		logger:     logger.With("component", "continuity_resolver"),
	}
}

// Judge resolves the continuity decision for curr following prev. A nil prev
// means the previous scene produced no artifact; that case short-circuits to
// "do not use continuity" without touching the cache or the judge. All other
// outcomes, including fallbacks after judge errors, are cached by scene pair.
func (r *Resolver) Judge(ctx context.Context, prev *domain.SceneMeta, curr domain.SceneMeta) Judgment {
	if prev == nil {
		return Judgment{
			UsePrevFrame:   false,
			Classification: ClassificationUnknown,
			Confidence:     1,
			Reason:         "no previous artifact available",
		}
	}

	key := pairKey{prevID: prev.SceneID, currID: curr.SceneID}
	if judgment, ok := r.cache[key]; ok {
		return judgment
	}

	judgment := r.resolve(ctx, *prev, curr)
	r.cache[key] = judgment
	return judgment
}

func (r *Resolver) resolve(ctx context.Context, prev, curr domain.SceneMeta) Judgment {
	if r.judge == nil {
		return Judgment{
			UsePrevFrame:   r.defaultUse,
			Classification: ClassificationUnknown,
			Reason:         "no judge configured, using default",
		}
	}

	judgment, err := r.judge.JudgeContinuity(ctx, prev, curr)
	if err != nil {
		r.logger.Warn("continuity judge unavailable, using default",
			"prev_scene", prev.SceneID,
			"curr_scene", curr.SceneID,
			"default_use_frame", r.defaultUse,
			"error", err)
		return Judgment{
			UsePrevFrame:   r.defaultUse,
			Classification: ClassificationUnknown,
			Reason:         fmt.Sprintf("judge unavailable: %v", err),
		}
	}

	r.logger.Debug("continuity judged",
		"prev_scene", prev.SceneID,
		"curr_scene", curr.SceneID,
		"classification", judgment.Classification,
		"use_prev_frame", judgment.UsePrevFrame,
		"confidence", judgment.Confidence)
	return judgment
}
