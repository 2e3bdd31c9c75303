// Package logging provides structured logging utilities for ocipush components.
//
// # Overview
//
// This package wraps the standard library slog package with ocipush-specific
// defaults and conventions for consistent logging across the CLI and the
// build-task adapter. It supports environment-based log level configuration,
// module/version context injection, and automatic source location tracking
// for debug logs.
//
// # Log Levels
//
// Supported log levels (case-insensitive):
//   - DEBUG: Detailed diagnostic information with source location
//   - INFO: General informational messages (default)
//   - WARN/WARNING: Warning messages for potentially problematic situations
//   - ERROR: Error messages for failures requiring attention
//
// # Usage
//
// Setting the default logger (recommended):
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("ocipush", version)
//
//	    slog.Info("pushing archive", "path", archivePath)
//	    slog.Error("push failed", "error", err)
//	}
//
// Setting explicit log level:
//
//	logging.SetDefaultStructuredLoggerWithLevel("ocipush", version, "warn")
//
// # Environment Configuration
//
// The LOG_LEVEL environment variable controls logging verbosity:
//
//	LOG_LEVEL=debug ocipush push --archive app.tar --registry localhost:5000
//
// If LOG_LEVEL is not set, defaults to INFO level.
//
// # Output Format
//
// All logs are written to stderr in JSON format so stdout stays reserved
// for the machine-readable outcome report:
//
//	{
//	    "time": "2025-01-15T10:30:00.123Z",
//	    "level": "INFO",
//	    "msg": "image pushed",
//	    "module": "ocipush",
//	    "version": "v1.0.0",
//	    "repository": "team/app"
//	}
package logging
