package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrNoScenes is returned when a render request contains no scenes.
	ErrNoScenes = errors.New("render request has no scenes")
)

// ErrorKind classifies a failure from an external generation service into a
// closed set of variants. Classification happens exactly once, at the service
// boundary that observed the failure; downstream logic switches on the kind
// instead of scanning message text.
type ErrorKind string

// Possible error kinds, grouped by how the retry machinery treats them.
const (
	// Retryable kinds: eligible for the backoff loop.

	// ErrorKindNetwork covers connection resets, DNS failures, and other
	// transport-level errors.
	ErrorKindNetwork ErrorKind = "network"

	// ErrorKindTimeout covers deadline exceedances, both local and upstream.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindRateLimited indicates the upstream service rejected the call
	// for exceeding its quota (HTTP 429 and equivalents).
	ErrorKindRateLimited ErrorKind = "rate_limited"

	// ErrorKindServerError covers upstream 5xx responses.
	ErrorKindServerError ErrorKind = "server_error"

	// ErrorKindUnknown is the default for errors that were never classified.
	// Treated as retryable so unclassified flakes still get their attempts.
	ErrorKindUnknown ErrorKind = "unknown"

	// Recoverable kind: eligible for exactly one input-mutating retry.

	// ErrorKindAudioRejected indicates the service refused the request
	// because the prompt carried spoken dialogue the model does not accept.
	// Retrying with the dialogue stripped may succeed.
	ErrorKindAudioRejected ErrorKind = "audio_rejected"

	// Fatal kinds: surfaced immediately, no retries.

	// ErrorKindContentPolicy indicates the input or output was blocked by
	// the provider's content safety filters.
	ErrorKindContentPolicy ErrorKind = "content_policy"

	// ErrorKindInvalidInput indicates the request itself was malformed or
	// unsupported (HTTP 400 and equivalents).
	ErrorKindInvalidInput ErrorKind = "invalid_input"

	// ErrorKindCopyright indicates a copyright or likeness rejection.
	ErrorKindCopyright ErrorKind = "copyright"

	// Terminal kinds produced by the orchestrator itself.

	// ErrorKindExhausted marks a retryable failure whose attempts ran out.
	// Distinct from the fatal kinds for observability.
	ErrorKindExhausted ErrorKind = "exhausted"

	// ErrorKindMuxFailure marks a failed concatenation of generated clips.
	ErrorKindMuxFailure ErrorKind = "mux_failure"
)

// Retryable reports whether errors of this kind are eligible for the
// generic backoff retry loop.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindNetwork, ErrorKindTimeout, ErrorKindRateLimited,
		ErrorKindServerError, ErrorKindUnknown:
		return true
	default:
		return false
	}
}

// Recoverable reports whether the kind permits a single input-mutating
// retry (a one-shot side channel, not a generic repeat).
func (k ErrorKind) Recoverable() bool {
	return k == ErrorKindAudioRejected
}

// ServiceError is the structured failure produced at an external service
// boundary. It carries everything a caller needs to decide whether to
// resubmit: the closed kind, the service and stage that failed, the
// upstream code verbatim, and a human-readable message.
type ServiceError struct {
	Kind    ErrorKind `json:"kind"`
	Service string    `json:"service"`
	Stage   string    `json:"stage"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s failed (%s/%s): %s", e.Service, e.Stage, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s failed (%s): %s", e.Service, e.Stage, e.Kind, e.Message)
}

// Unwrap returns the wrapped cause to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the wrapped failure is worth another attempt.
func (e *ServiceError) Retryable() bool {
	return e.Kind.Retryable()
}

// NewServiceError creates a ServiceError with the given classification.
func NewServiceError(kind ErrorKind, service, stage, code, message string) *ServiceError {
	return &ServiceError{
		Kind:    kind,
		Service: service,
		Stage:   stage,
		Code:    code,
		Message: message,
	}
}

// WrapServiceError classifies an underlying error, preserving it as the
// wrapped cause.
func WrapServiceError(kind ErrorKind, service, stage string, err error) *ServiceError {
	return &ServiceError{
		Kind:    kind,
		Service: service,
		Stage:   stage,
		Message: err.Error(),
		Err:     err,
	}
}

// AsServiceError extracts a ServiceError from err's chain, if present.
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// ServiceErrorFrom returns err's ServiceError classification. Errors that
// were never classified at a boundary are wrapped as ErrorKindUnknown so
// every stored task error has the same structured shape.
func ServiceErrorFrom(err error) *ServiceError {
	if svcErr, ok := AsServiceError(err); ok {
		return svcErr
	}
	return WrapServiceError(ErrorKindUnknown, "internal", "execute", err)
}
