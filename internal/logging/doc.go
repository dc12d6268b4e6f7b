// Package logging assembles structured slog loggers and formatting helpers used
// across romident.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so identification code can tag
// log lines with correlation IDs and image paths. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// Library packages accept a *slog.Logger and fall back to NewNop when given
// nil; they never log through the slog default logger.
package logging
