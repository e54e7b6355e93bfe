package gemini

// promptScene is one scene's metadata flattened for the prompt template
type promptScene struct {
	SceneID    string
	Title      string
	Location   string
	TimeOfDay  string
	Mood       string
	Characters string
}

// promptData represents the data passed to the prompt template
type promptData struct {
	Prev promptScene
	Curr promptScene
}

// verdictSchema represents the expected structure of a verdict from the
// Gemini API
type verdictSchema struct {
	// Classification labels the scene relationship
	Classification string `json:"classification"`

	// UsePreviousFrame reports whether the previous clip's last frame should
	// seed the next generation
	UsePreviousFrame bool `json:"use_previous_frame"`

	// Confidence is the model's self-reported certainty, 0-1
	Confidence float64 `json:"confidence"`

	// Reason is a short explanation of the verdict
	Reason string `json:"reason"`
}
