// Package logging assembles structured slog loggers and formatting helpers used
// across trackline services.
//
// It owns the console and JSON handlers, routes file outputs through a
// rotating writer, and exposes context-aware helpers so pipeline code can tag
// log lines with track IDs, stages, worker names, and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
