package veo

import (
	"net/http"
	"strings"

	"github.com/storyreel/storyreel/internal/domain"
)

// serviceName identifies this provider in classified errors.
const serviceName = "veo"

// kindFromSignals maps provider failure signals to an error kind. Message
// content wins over canonical status codes because the API reports policy
// rejections through generic codes with descriptive text.
func kindFromSignals(httpStatus int, apiStatus, message string) domain.ErrorKind {
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(lowered, "audio"):
		return domain.ErrorKindAudioRejected
	case strings.Contains(lowered, "copyright"),
		strings.Contains(lowered, "intellectual property"):
		return domain.ErrorKindCopyright
	case strings.Contains(lowered, "safety"),
		strings.Contains(lowered, "violate"),
		strings.Contains(lowered, "prohibited"),
		strings.Contains(lowered, "usage guidelines"):
		return domain.ErrorKindContentPolicy
	case strings.Contains(lowered, "quota"),
		strings.Contains(lowered, "rate limit"):
		return domain.ErrorKindRateLimited
	}

	switch apiStatus {
	case "RESOURCE_EXHAUSTED":
		return domain.ErrorKindRateLimited
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "PERMISSION_DENIED", "UNAUTHENTICATED", "NOT_FOUND":
		return domain.ErrorKindInvalidInput
	case "DEADLINE_EXCEEDED":
		return domain.ErrorKindTimeout
	case "UNAVAILABLE", "INTERNAL":
		return domain.ErrorKindServerError
	}

	switch {
	case httpStatus == http.StatusTooManyRequests:
		return domain.ErrorKindRateLimited
	case httpStatus == http.StatusRequestTimeout:
		return domain.ErrorKindTimeout
	case httpStatus == http.StatusBadRequest,
		httpStatus == http.StatusUnauthorized,
		httpStatus == http.StatusForbidden,
		httpStatus == http.StatusNotFound:
		return domain.ErrorKindInvalidInput
	case httpStatus >= http.StatusInternalServerError:
		return domain.ErrorKindServerError
	}

	return domain.ErrorKindUnknown
}

// serviceErrorFromStatus classifies a non-2xx HTTP response.
func serviceErrorFromStatus(stage string, httpStatus int, apiStatus, message string) *domain.ServiceError {
	if message == "" {
		message = http.StatusText(httpStatus)
	}
	code := apiStatus
	if code == "" {
		code = http.StatusText(httpStatus)
	}
	kind := kindFromSignals(httpStatus, apiStatus, message)
	return domain.NewServiceError(kind, serviceName, stage, code, message)
}

// serviceErrorFromOperation classifies a failed long-running operation.
func serviceErrorFromOperation(stage string, opErr *operationError) *domain.ServiceError {
	kind := kindFromSignals(0, opErr.Status, opErr.Message)
	return domain.NewServiceError(kind, serviceName, stage, opErr.Status, opErr.Message)
}
