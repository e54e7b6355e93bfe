// Package domain contains the core business entities and value objects of
// the render orchestrator: scenes, generation jobs and their outcomes, and
// the closed error taxonomy shared by every external service boundary. It is
// independent of any specific provider or delivery mechanism.
package domain
