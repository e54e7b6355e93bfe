package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ErrExhausted marks a retryable failure whose attempt budget ran out. The
// returned error also wraps the last attempt's error, so both
// errors.Is(err, ErrExhausted) and errors.As against the underlying failure
// work.
var ErrExhausted = errors.New("max retry attempts exceeded")

// Default policy values applied when a Policy field is unset or invalid.
const (
	DefaultMaxAttempts   = 3
	DefaultBaseDelay     = 2 * time.Second
	DefaultBackoffFactor = 2.0
)

// Class is the classifier's verdict on one error.
type Class int

const (
	// ClassRetryable errors go through the generic backoff loop until
	// attempts are exhausted.
	ClassRetryable Class = iota

	// ClassFatal errors end the run immediately with no further attempts.
	ClassFatal

	// ClassRecoverable errors permit exactly one retry with a transformed
	// input (a one-shot side channel, not a generic repeat).
	ClassRecoverable
)

// Classifier maps an error to a Class. A nil Classifier treats every error
// as retryable.
type Classifier func(error) Class

// Policy describes how an operation is retried: the attempt budget, the
// backoff schedule (BaseDelay * BackoffFactor^attempt between attempts),
// and the classifier consulted after each failure.
type Policy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BackoffFactor float64
	Classify      Classifier

	// Logger receives retry warnings. Nil falls back to slog.Default().
	Logger *slog.Logger
}

// DefaultPolicy returns a Policy with the package defaults and no
// classifier.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   DefaultMaxAttempts,
		BaseDelay:     DefaultBaseDelay,
		BackoffFactor: DefaultBackoffFactor,
	}
}

// Attempt describes the current try to the operation.
type Attempt struct {
	// Number is 1-based: the first call sees 1.
	Number int

	// Mutate is true on at most one attempt per run: the one immediately
	// following a recoverable-classified error. The operation should
	// transform its input (e.g. strip the rejected feature) before calling
	// the service again.
	Mutate bool
}

// Do runs op under the policy until it succeeds, a fatal error stops the
// run, the context is cancelled, or attempts are exhausted. Context
// cancellation is never retried and is returned as the context's error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt Attempt) (T, error)) (T, error) {
	var zero T

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		logger.Warn("invalid max attempts, using default",
			"specified", p.MaxAttempts,
			"default", DefaultMaxAttempts)
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = DefaultBackoffFactor
	}
	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return ClassRetryable }
	}

	var (
		lastErr    error
		mutated    bool
		mutateNext bool
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx, Attempt{Number: attempt + 1, Mutate: mutateNext})
		mutateNext = false
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		switch classify(err) {
		case ClassFatal:
			return zero, err
		case ClassRecoverable:
			if mutated {
				// The one-shot mutation was already spent; repeating the
				// same input would loop on the same rejection.
				return zero, err
			}
			mutated = true
			mutateNext = true
		}

		if attempt == maxAttempts-1 {
			break
		}

		delay := backoffDelay(baseDelay, factor, attempt)
		logger.Warn("operation failed, retrying after backoff",
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("%w (%d): %w", ErrExhausted, maxAttempts, lastErr)
}

// backoffDelay computes baseDelay * factor^attempt for a zero-based attempt
// index.
func backoffDelay(base time.Duration, factor float64, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(factor, float64(attempt)))
}
