// Package task provides asynchronous task management: an in-memory store of
// immutable task snapshots, a manager that bounds concurrent execution with a
// weighted semaphore, cooperative cancellation through per-task contexts, and
// a background sweeper that expires finished tasks.
package task
