package posts

import "errors"

var (
	// ErrValidation reports malformed input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition reports a status change outside the allowed edges,
	// or an edit of a post that is no longer pending.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotFound reports an unknown post or client id.
	ErrNotFound = errors.New("not found")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
