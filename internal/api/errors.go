package api

import "errors"

var (
	// ErrForbidden reports a client acting on a post it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable reports a feature that is not configured.
	ErrUnavailable = errors.New("unavailable")
)
