// Package events provides types and interfaces for task lifecycle
// notifications.
//
// The task manager publishes an event on every status transition without
// knowing which handlers observe them, keeping observers (logging, metrics,
// future webhooks) decoupled from task execution. Handlers must be fast:
// events are dispatched synchronously from the execution path.
package events
