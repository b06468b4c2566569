// Package logging provides a minimal logging interface and adapters for reportmesh.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that the report engine, runtime and stores use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NewLogger building a JSON or text slog handler from LoggerConfig
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	engine := report.NewEngine(runtime, artifacts, report.WithLogger(logger))
//
// Messages are dotted event names ("report.session.created") and arguments
// are slog key/value pairs.
package logging
