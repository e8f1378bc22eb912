// Package logging provides the shared structured-logging conventions.
//
// Loggers are dependency-injected, never global. Each component scopes
// its own logger once at construction time with slog.With, and a nil
// logger falls back to a discard logger so components never have to
// nil-check. Output format, level, and destination are decided by the
// embedding program, not by this module.
//
// Logging is intentionally sparse: lifecycle boundaries and retention
// actions are the intended log points. The render hot path logs only
// at Debug level, and only for index emission and discontinuities.
package logging

import "log/slog"

// Discard returns a logger whose output goes nowhere.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Default substitutes a discard logger for nil, letting constructors
// take an optional logger and scope it without a nil check:
//
//	logger = logging.Default(logger).With("component", "sink")
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
