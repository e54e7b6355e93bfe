// Package retry executes fallible operations with exponential backoff and
// an error classifier deciding between three outcomes per failure: retry,
// stop immediately, or retry once with a transformed input. Exhausting the
// attempt budget is reported distinctly from a fatal error so callers can
// tell "gave up" apart from "rejected".
package retry
