// Package logging provides structured logging utilities for dropforward.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "poll")
//	logger.Info("run finished",
//	    logging.Status(logging.StatusSuccess))
//
// Tokens must never be logged directly; use SanitizeToken for any value that
// could contain credential material.
package logging
