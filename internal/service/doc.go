// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects, the script
// parser, and the render pipeline to fulfill application features.
//
// The service package implements the application layer: it coordinates the
// flow of data between the delivery mechanisms (HTTP API, CLI) and the
// render pipeline, abstracting away infrastructure details.
//
// Key components:
//
// 1. RenderService:
//   - Parses scene scripts into validated render requests
//   - Schedules renders as background tasks for the API
//   - Runs renders synchronously for the one-shot CLI
//
// 2. Dependency Management:
//   - Services receive dependencies through constructor injection
//   - Core dependencies are the renderer, the task submitter, and the logger
//
// 3. Error Handling:
//   - Translates parse and validation failures into sentinel-wrapped errors
//   - Wraps unexpected failures in service-specific error types
//   - The API layer maps service errors to appropriate HTTP status codes
//
// The service layer depends on domain entities and collaborator interfaces,
// never on specific infrastructure implementations.
package service
