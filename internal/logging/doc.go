// Package logging assembles structured slog loggers used across phraseindex.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers so pipeline code can tag log lines with video IDs,
// stages, and run tokens. A no-op logger is provided for tests.
package logging
