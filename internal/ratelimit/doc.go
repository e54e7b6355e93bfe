// Package ratelimit provides a sliding-window rate limiter for bounding how
// many calls may start within a trailing time window, independent of how
// many are in flight. Unlike a token bucket, the window slides: a start is
// admitted only when fewer than the maximum number of starts happened in
// the window ending now.
package ratelimit
