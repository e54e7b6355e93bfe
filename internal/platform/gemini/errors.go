package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the judge configuration is unusable.
	ErrInvalidConfig = errors.New("invalid continuity judge configuration")

	// ErrContentBlocked is returned when the model refuses the prompt on
	// safety grounds.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrEmptyResponse is returned when the model produces no text.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrUnparsableVerdict is returned when neither the JSON schema nor the
	// keyword heuristics can make sense of the model output.
	ErrUnparsableVerdict = errors.New("unparsable continuity verdict")
)
