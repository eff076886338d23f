// Package logging provides a minimal logging interface and adapters for agentguard.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the guardian, the session state tool and the CLI use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with component / session attributes and stack traces
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	guard, err := agentguard.New(func(o *agentguard.Options) { o.Logger = logger })
//
// Arguments after the message are slog key/value pairs.
package logging
