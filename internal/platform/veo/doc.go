// Package veo provides an image-to-video generation client for Google's Veo
// models over the Gemini REST API. Generations are long-running: the client
// submits a prediction, polls the returned operation until it finishes and
// hands back a reference to the remote artifact, which can then be downloaded
// to local storage.
//
// All provider failures are classified into domain.ServiceError values at
// this boundary, so callers decide retry and fallback behavior from the error
// kind alone without inspecting HTTP details.
package veo
