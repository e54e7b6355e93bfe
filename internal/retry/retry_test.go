package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPolicy returns a fast policy with a discard logger for tests.
func testPolicy(classify Classifier) Policy {
	return Policy{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		BackoffFactor: 2.0,
		Classify:      classify,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	transient := errors.New("connection reset")
	calls := 0

	result, err := Do(context.Background(), testPolicy(nil), func(ctx context.Context, attempt Attempt) (string, error) {
		calls++
		assert.Equal(t, calls, attempt.Number, "attempt numbers are 1-based and sequential")
		if calls < 3 {
			return "", transient
		}
		return "clip.mp4", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", result)
	assert.Equal(t, 3, calls, "two failures then success must use exactly 3 attempts")
}

func TestDoStopsImmediatelyOnFatal(t *testing.T) {
	t.Parallel()

	fatal := errors.New("content policy violation")
	classify := func(err error) Class { return ClassFatal }

	calls := 0
	_, err := Do(context.Background(), testPolicy(classify), func(ctx context.Context, attempt Attempt) (string, error) {
		calls++
		return "", fatal
	})

	require.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrExhausted, "fatal errors are not exhaustion")
	assert.Equal(t, 1, calls, "fatal errors must end the run after exactly 1 attempt")
}

func TestDoExhaustionIsDistinctAndWrapsLastError(t *testing.T) {
	t.Parallel()

	transient := errors.New("upstream 503")
	calls := 0

	_, err := Do(context.Background(), testPolicy(nil), func(ctx context.Context, attempt Attempt) (int, error) {
		calls++
		return 0, transient
	})

	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, transient, "the last attempt's error stays in the chain")
	assert.Equal(t, 3, calls)
}

func TestDoMutationSideChannelFiresOnce(t *testing.T) {
	t.Parallel()

	recoverable := errors.New("audio filtered")
	classify := func(err error) Class {
		if errors.Is(err, recoverable) {
			return ClassRecoverable
		}
		return ClassRetryable
	}

	var sawMutate []bool
	result, err := Do(context.Background(), testPolicy(classify), func(ctx context.Context, attempt Attempt) (string, error) {
		sawMutate = append(sawMutate, attempt.Mutate)
		if attempt.Number == 1 {
			return "", recoverable
		}
		return "clip.mp4", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", result)
	assert.Equal(t, []bool{false, true}, sawMutate,
		"the attempt after a recoverable error must carry the mutate flag")
}

func TestDoRecoverableAfterSpentMutationIsTerminal(t *testing.T) {
	t.Parallel()

	recoverable := errors.New("audio filtered")
	classify := func(err error) Class { return ClassRecoverable }

	calls := 0
	_, err := Do(context.Background(), testPolicy(classify), func(ctx context.Context, attempt Attempt) (string, error) {
		calls++
		return "", recoverable
	})

	require.ErrorIs(t, err, recoverable)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, calls, "a recoverable error recurring after mutation ends the run")
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	t.Parallel()

	policy := testPolicy(nil)
	policy.BaseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, func(ctx context.Context, attempt Attempt) (int, error) {
			calls++
			return 0, errors.New("transient")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls, "cancellation during backoff must not start another attempt")
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestDoReturnsEarlyOnAlreadyCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, testPolicy(nil), func(ctx context.Context, attempt Attempt) (int, error) {
		calls++
		return 0, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls, "a cancelled context must prevent the first attempt")
}

func TestDoAppliesDefaultsForInvalidPolicy(t *testing.T) {
	t.Parallel()

	policy := Policy{
		BaseDelay:     time.Millisecond,
		BackoffFactor: 1.0,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	calls := 0
	_, err := Do(context.Background(), policy, func(ctx context.Context, attempt Attempt) (int, error) {
		calls++
		return 0, errors.New("transient")
	})

	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, DefaultMaxAttempts, calls, "zero max attempts falls back to the default")
}

func TestBackoffDelaySchedule(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, backoffDelay(base, 2.0, 0))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(base, 2.0, 1))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, 2.0, 2))
	assert.Equal(t, 300*time.Millisecond, backoffDelay(base, 3.0, 1))
}
