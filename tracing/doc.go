// Package tracing wraps OpenTelemetry so that the engine and the HTTP layer
// start and end spans through a couple of helpers instead of importing the
// upstream packages directly.
package tracing
