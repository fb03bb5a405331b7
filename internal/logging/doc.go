// Package logging assembles structured slog loggers used across postflow.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context helpers that tag records with post IDs, client IDs, stages and
// correlation IDs. A no-op logger is provided for tests and for wiring code
// that cannot fail.
package logging
