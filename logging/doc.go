// Package logging provides a minimal logging interface and adapters for runmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, strategies, tools and model adapters use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - RunMeshLogger with component / run scoping and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := runmesh.New(func(o *runmesh.Options) { o.Logger = logger })
//
// Arguments after the message are always slog-style key/value pairs.
package logging
