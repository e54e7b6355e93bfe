// Package gemini provides an implementation of the continuity.Judge interface
// that uses Google's Gemini API to decide whether consecutive scenes are
// visually continuous.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the application's domain logic to Google's external Gemini AI
// service. It translates between the application's scene metadata and the
// Gemini API without exposing the details of the external service to the
// core application.
//
// Key components:
//
// 1. ContinuityJudge:
//   - Implements the continuity.Judge interface
//   - Handles communication with the Gemini API
//   - Processes structured verdicts into continuity judgments
//
// 2. Prompt Management:
//   - Renders the fixed judgment prompt template
//   - Substitutes scene metadata into the template
//
// 3. Verdict Processing:
//   - Parses structured JSON verdicts from the API
//   - Falls back to keyword heuristics when the model strays from the
//     requested format
//   - Leaves the final fallback (the configured default) to the resolver
//
// 4. Error Handling:
//   - Retries transient API errors with exponential backoff
//   - Treats safety blocks and empty responses as permanent
//
// The package depends on the google.golang.org/genai client library for
// communicating with the Gemini API, and handles authentication, request
// formatting, and response processing according to Google's API
// specifications.
package gemini
