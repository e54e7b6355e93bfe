package veo

// Wire types for the predictLongRunning surface. Field names follow the
// JSON the API expects.

type predictRequest struct {
	Instances  []instance  `json:"instances"`
	Parameters *parameters `json:"parameters,omitempty"`
}

type instance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`

	// ReferenceImage carries the continuity frame extracted from the
	// previous clip, when one is in play.
	ReferenceImage *inlineImage `json:"referenceImage,omitempty"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type parameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	NegativePrompt  string `json:"negativePrompt,omitempty"`
}

type operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationResponse `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

type operationResponse struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
}

type generateVideoResponse struct {
	GeneratedSamples        []generatedSample `json:"generatedSamples,omitempty"`
	RaiMediaFilteredReasons []string          `json:"raiMediaFilteredReasons,omitempty"`
}

type generatedSample struct {
	Video *videoRef `json:"video,omitempty"`
}

type videoRef struct {
	URI string `json:"uri,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}
