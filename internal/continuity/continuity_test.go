package continuity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/domain"
)

// mockJudge implements Judge with scripted responses
type mockJudge struct {
	judgment Judgment
	err      error
	calls    int
}

func (j *mockJudge) JudgeContinuity(ctx context.Context, prev, curr domain.SceneMeta) (Judgment, error) {
	j.calls++
	return j.judgment, j.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sceneMeta(id string) domain.SceneMeta {
	return domain.SceneMeta{SceneID: id, Location: "rooftop", TimeOfDay: "dusk"}
}

func TestResolver_NoPreviousArtifact(t *testing.T) {
	judge := &mockJudge{judgment: Judgment{UsePrevFrame: true}}
	resolver := NewResolver(judge, true, testLogger())

	judgment := resolver.Judge(context.Background(), nil, sceneMeta("s2"))

	assert.False(t, judgment.UsePrevFrame)
	assert.Equal(t, ClassificationUnknown, judgment.Classification)
	assert.Equal(t, "no previous artifact available", judgment.Reason)
	// The judge is never consulted when there is nothing to continue from
	assert.Zero(t, judge.calls)
}

func TestResolver_JudgeResultIsReturnedAndCached(t *testing.T) {
	judge := &mockJudge{judgment: Judgment{
		UsePrevFrame:   true,
		Classification: ClassificationContinuousScene,
		Confidence:     0.9,
		Reason:         "camera follows the same chase",
	}}
	resolver := NewResolver(judge, false, testLogger())

	prev := sceneMeta("s1")
	first := resolver.Judge(context.Background(), &prev, sceneMeta("s2"))
	assert.True(t, first.UsePrevFrame)
	assert.Equal(t, ClassificationContinuousScene, first.Classification)
	assert.Equal(t, 1, judge.calls)

	// Same pair again: served from cache
	second := resolver.Judge(context.Background(), &prev, sceneMeta("s2"))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, judge.calls)

	// A different pair triggers a fresh judgment
	resolver.Judge(context.Background(), &prev, sceneMeta("s3"))
	assert.Equal(t, 2, judge.calls)
}

func TestResolver_NoJudgeUsesDefault(t *testing.T) {
	for _, defaultUse := range []bool{true, false} {
		resolver := NewResolver(nil, defaultUse, testLogger())

		prev := sceneMeta("s1")
		judgment := resolver.Judge(context.Background(), &prev, sceneMeta("s2"))

		assert.Equal(t, defaultUse, judgment.UsePrevFrame)
		assert.Equal(t, ClassificationUnknown, judgment.Classification)
		assert.Equal(t, "no judge configured, using default", judgment.Reason)
	}
}

func TestResolver_JudgeErrorFallsBackToDefault(t *testing.T) {
	judge := &mockJudge{err: errors.New("model overloaded")}
	resolver := NewResolver(judge, true, testLogger())

	prev := sceneMeta("s1")
	judgment := resolver.Judge(context.Background(), &prev, sceneMeta("s2"))

	assert.True(t, judgment.UsePrevFrame)
	assert.Equal(t, ClassificationUnknown, judgment.Classification)
	assert.Contains(t, judgment.Reason, "judge unavailable")
	assert.Contains(t, judgment.Reason, "model overloaded")
	require.Equal(t, 1, judge.calls)

	// The fallback is cached too: the failing judge is not retried
	resolver.Judge(context.Background(), &prev, sceneMeta("s2"))
	assert.Equal(t, 1, judge.calls)
}
