// Package pipeline turns an ordered set of scene jobs into video clips.
//
// A run operates in one of two modes. With continuity disabled, scenes are
// generated concurrently under a configurable bound, each one independent.
// With continuity enabled, scenes run strictly in order: before each scene
// the resolver decides whether the clip should be seeded with a frame
// extracted from the previous scene's output, so motion carries across the
// cut. A scene whose predecessor failed never uses continuity.
//
// Every generation call is wrapped in a classified retry. Dialogue-bearing
// prompts the service rejects trigger a single rebuilt attempt with the
// dialogue stripped. Optional per-attempt rate limiting throttles call
// starts across the whole run.
//
// Scene jobs may carry sub-shots: dependent clips generated from a frame of
// the parent clip and concatenated after it. Sub-shot failures are recorded
// per shot and never fail the parent; a failed concatenation does fail the
// scene, with the parent artifact preserved in the outcome.
//
// A run never aborts because one scene failed. It produces exactly one
// outcome per input job plus an aggregate report; only context cancellation
// or an unusable environment stop a run early.
package pipeline
