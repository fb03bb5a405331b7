package logging

import (
	"context"
	"log/slog"

	"postflow/internal/services"
)

const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldPostID is the post identifier.
	FieldPostID = "post_id"
	// FieldClientID is the owning client identifier.
	FieldClientID = "client_id"
	// FieldStage is the processing stage (resolve, publish, commit).
	FieldStage = "stage"
	// FieldCorrelationID carries the per-request or per-publish identifier.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldErrorKind is the classification from services.Details.
	FieldErrorKind = "error_kind"
	// FieldErrorOperation is the failing operation from services.Details.
	FieldErrorOperation = "error_operation"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags records that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.PostIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldPostID, id))
	}
	if id, ok := services.ClientIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldClientID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
