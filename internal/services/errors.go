package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternal      = errors.New("external service error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind is the log classification derived from a marker error.
type ErrorKind string

const (
	ErrorKindExternal      ErrorKind = "external"
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindTransient     ErrorKind = "transient"
	ErrorKindUnknown       ErrorKind = "unknown"
)

// ErrorDetails summarizes a wrapped service error for structured logging.
type ErrorDetails struct {
	Kind      ErrorKind
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// operationError keeps the operation label alongside the wrapped chain so
// Details can recover it without parsing the message.
type operationError struct {
	marker    error
	operation string
	detail    string
	cause     error
}

func (e *operationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.marker, e.detail, e.cause)
	}
	return fmt.Sprintf("%v: %s", e.marker, e.detail)
}

func (e *operationError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &operationError{
		marker:    marker,
		operation: strings.TrimSpace(operation),
		detail:    buildDetail(stage, operation, message),
		cause:     err,
	}
}

// Details extracts the classification, operation and hint for an error chain.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: ErrorKindUnknown}
	}
	details := ErrorDetails{Kind: kindOf(err), Message: err.Error()}
	var opErr *operationError
	if errors.As(err, &opErr) {
		details.Operation = opErr.operation
		details.Message = opErr.detail
		details.Cause = opErr.cause
	}
	details.Hint = hintFor(details.Kind)
	return details
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrConfiguration):
		return ErrorKindConfiguration
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrTimeout):
		return ErrorKindTimeout
	case errors.Is(err, ErrExternal):
		return ErrorKindExternal
	case errors.Is(err, ErrTransient):
		return ErrorKindTransient
	default:
		return ErrorKindUnknown
	}
}

func hintFor(kind ErrorKind) string {
	switch kind {
	case ErrorKindValidation:
		return "fix the post content or media reference"
	case ErrorKindConfiguration:
		return "check platform and media settings in config.toml"
	case ErrorKindNotFound:
		return "verify the media asset still exists"
	case ErrorKindTimeout:
		return "platform did not answer in time; check the post on the platform before retrying"
	case ErrorKindExternal:
		return "inspect the platform response in the log"
	default:
		return "retried on the next publish cycle"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
