// Package logging assembles structured slog loggers and formatting helpers used
// across Rudder.
//
// It owns the console and JSON handlers, fans output out to stdout and the log
// file, and exposes context-aware helpers so ingestion and API code tag log
// lines with print job IDs, filenames, and request correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
