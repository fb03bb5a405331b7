// Package posts persists scheduled posts, their owning clients and the
// publish attempt history in SQLite, and enforces the post lifecycle.
//
// A post moves through a small state machine:
//
//	pending -> approved -> published
//	pending -> rejected
//
// Every other edge is refused with ErrInvalidTransition. Transitions are
// compare-and-set updates guarded by the Store's mutex, so the daemon's HTTP
// handlers, the publish worker and CLI processes sharing the database file
// never tear a record or lose an update.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add columns, update schema.sql and bump schemaVersion. Users clear
// the database to adopt a new schema.
package posts
