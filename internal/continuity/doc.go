// Package continuity decides whether consecutive scenes should share visual
// continuity, i.e. whether the last frame of the previous clip seeds the next
// generation. Decisions come from an optional judge (typically LLM-backed)
// and are cached per resolver so a scene pair is never judged twice within a
// run.
package continuity
