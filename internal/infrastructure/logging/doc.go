// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default so that command output on stdout stays
// machine-readable.
//
// Stores accept a nil *Logger; use OrNop to normalize it.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Stream connected", zap.String("url", url))
//	logger.Warn("Dropping malformed event", zap.Error(err))
package logging
