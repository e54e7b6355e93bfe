// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It acts as an adapter between external clients
// and the internal application services, translating HTTP concerns to
// business operations: render submissions become background tasks, and task
// queries read the manager's snapshots.
package api
