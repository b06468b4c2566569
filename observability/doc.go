// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for report turns, artifact sweeps and the HTTP API.
package observability
