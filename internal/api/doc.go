// Package api holds the post workflow service shared by the HTTP server and
// the CLI, plus the wire-format DTOs both surfaces return.
//
// # Key Types
//
// PostService: scheduling, review, editing, and listing on top of the post
// store. It validates requests with go-playground/validator, checks media
// through the media library, normalizes captions, and fans out lifecycle
// side effects (events, notifications, metrics) without letting their
// failures change the outcome.
//
// Post, Client, Attempt: transport representations of the store models.
//
// DaemonStatus: worker state plus per-status counts for `postflow status`.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Statuses are lowercase strings.
package api
