package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"postflow/internal/events"
	"postflow/internal/logging"
	"postflow/internal/media"
	"postflow/internal/metrics"
	"postflow/internal/notifications"
	"postflow/internal/posts"
	"postflow/internal/services"
	"postflow/internal/textutil"
)

// Result values recorded per post in a CycleReport.
const (
	ResultPublished = "published"
	ResultFailed    = "failed"
	ResultDeferred  = "deferred"
	ResultConflict  = "conflict"
)

// Outcome is what happened to one post during a cycle.
type Outcome struct {
	PostID     int64
	Result     string
	ExternalID string
	Error      string
}

// CycleReport summarizes one pass over the approved posts.
type CycleReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Candidates int
	Published  int
	Failed     int
	Deferred   int
	Cancelled  bool
	// Err is set when the cycle could not list candidates at all.
	Err      error
	Outcomes []Outcome
}

// RunCycle performs one publish pass over a fresh snapshot of approved posts.
// Posts are handled in creation order and independently: a failure is
// recorded and the cycle continues with the next post.
func (w *Worker) RunCycle(ctx context.Context) CycleReport {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	report := CycleReport{StartedAt: w.now()}
	defer func() {
		report.FinishedAt = w.now()
		w.finishCycle(ctx, &report)
	}()

	if ctx.Err() != nil {
		report.Cancelled = true
		return report
	}

	ctx = services.WithStage(ctx, "publish")
	candidates, err := w.store.ListByStatus(ctx, posts.StatusApproved)
	if err != nil {
		report.Err = err
		if !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(w.logger, "failed to list approved posts", "publish_list_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access"),
				logging.Alert("publish_cycle"),
			)
		}
		return report
	}
	report.Candidates = len(candidates)

	for _, post := range candidates {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		outcome := w.process(ctx, post)
		report.Outcomes = append(report.Outcomes, outcome)
		switch outcome.Result {
		case ResultPublished:
			report.Published++
		case ResultFailed:
			report.Failed++
		case ResultDeferred:
			report.Deferred++
		}
	}
	return report
}

func (w *Worker) process(ctx context.Context, post *posts.Post) Outcome {
	if w.honorSchedule && !post.Due(w.now()) {
		w.metrics.ObservePublish(metrics.ResultSkipped, "", 0)
		logging.WithContext(services.WithPostID(ctx, post.ID), w.logger).Debug("post not yet due",
			logging.Time("scheduled_time", *post.ScheduledTime),
			logging.String(logging.FieldEventType, "publish_deferred"),
		)
		return Outcome{PostID: post.ID, Result: ResultDeferred}
	}

	// Everything from here runs to completion even if ctx is cancelled.
	opCtx := context.WithoutCancel(ctx)
	correlationID := uuid.NewString()
	opCtx = services.WithRequestID(services.WithClientID(services.WithPostID(opCtx, post.ID), post.ClientID), correlationID)
	logger := logging.WithContext(opCtx, w.logger)

	started := time.Now()
	externalID, pubErr := w.publish(opCtx, post)
	elapsed := time.Since(started)

	attempt := posts.PublishAttempt{
		PostID:        post.ID,
		AttemptedAt:   started,
		Succeeded:     pubErr == nil,
		ExternalID:    externalID,
		Duration:      elapsed,
		CorrelationID: correlationID,
	}
	if pubErr != nil {
		attempt.Error = pubErr.Error()
	}
	if _, err := w.store.RecordAttempt(opCtx, attempt); err != nil {
		logging.WarnWithContext(logger, "failed to record publish attempt", "attempt_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}

	if pubErr != nil {
		return w.handleFailure(opCtx, logger, post, pubErr, elapsed)
	}
	return w.commit(opCtx, logger, post, externalID, elapsed)
}

func (w *Worker) publish(ctx context.Context, post *posts.Post) (string, error) {
	asset, err := w.media.Resolve(ctx, post.MediaRef)
	if err != nil {
		return "", err
	}
	if w.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.publishTimeout)
		defer cancel()
	}
	return w.platform.Publish(ctx, asset, textutil.ComposeCaption(post.Caption, post.Hashtags))
}

func (w *Worker) commit(ctx context.Context, logger *slog.Logger, post *posts.Post, externalID string, elapsed time.Duration) Outcome {
	updated, err := w.store.MarkPublished(ctx, post.ID, externalID)
	if err != nil {
		if errors.Is(err, posts.ErrInvalidTransition) {
			logging.WarnWithContext(logger, "post changed during publish; commit skipped", "publish_commit_conflict",
				logging.String("external_id", externalID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "platform post exists but the record was not advanced"),
			)
			return Outcome{PostID: post.ID, Result: ResultConflict, ExternalID: externalID, Error: err.Error()}
		}
		w.setLastError(err)
		logging.ErrorWithContext(logger, "published but failed to commit status", "publish_commit_failed",
			logging.String("external_id", externalID),
			logging.Error(err),
			logging.Alert("publish_commit"),
			logging.String(logging.FieldErrorHint, "post may be published again next cycle"),
		)
		return Outcome{PostID: post.ID, Result: ResultFailed, ExternalID: externalID, Error: err.Error()}
	}

	w.metrics.ObservePublish(metrics.ResultSuccess, "", elapsed)
	w.metrics.ObserveTransition(string(posts.StatusPublished))
	logger.Info("post published",
		logging.String("external_id", externalID),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "post_published"),
	)
	w.emit(ctx, logger, events.Event{
		Type:       events.TypePostPublished,
		PostID:     updated.ID,
		ClientID:   updated.ClientID,
		Status:     string(updated.Status),
		ExternalID: externalID,
	})
	w.notify(ctx, logger, notifications.EventPostPublished, notifications.Payload{
		"post":       w.postLabel(updated),
		"client":     w.clientName(ctx, updated.ClientID),
		"externalID": externalID,
	})
	return Outcome{PostID: post.ID, Result: ResultPublished, ExternalID: externalID}
}

func (w *Worker) handleFailure(ctx context.Context, logger *slog.Logger, post *posts.Post, pubErr error, elapsed time.Duration) Outcome {
	details := services.Details(pubErr)
	w.setLastError(pubErr)
	w.metrics.ObservePublish(metrics.ResultFailure, string(details.Kind), elapsed)

	attrs := []logging.Attr{
		logging.String("media_ref", post.MediaRef),
		logging.Alert("publish_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String(logging.FieldImpact, "post stays approved and is retried next cycle"),
		logging.Duration("elapsed", elapsed),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(pubErr))
	}
	logging.ErrorWithContext(logger, "publish failed", "publish_failed", attrs...)

	requestID, _ := services.RequestIDFromContext(ctx)
	w.emit(ctx, logger, events.Event{
		Type:          events.TypePublishFailed,
		PostID:        post.ID,
		ClientID:      post.ClientID,
		Status:        string(posts.StatusApproved),
		Error:         pubErr.Error(),
		CorrelationID: requestID,
	})
	w.notify(ctx, logger, notifications.EventPublishFailed, notifications.Payload{
		"post":   w.postLabel(post),
		"client": w.clientName(ctx, post.ClientID),
		"error":  pubErr,
	})
	return Outcome{PostID: post.ID, Result: ResultFailed, Error: pubErr.Error()}
}

func (w *Worker) emit(ctx context.Context, logger *slog.Logger, event events.Event) {
	if event.CorrelationID == "" {
		event.CorrelationID, _ = services.RequestIDFromContext(ctx)
	}
	event.OccurredAt = w.now().UTC()
	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	if err := w.events.Emit(ctx, event); err != nil {
		logging.WarnWithContext(logger, "lifecycle event not delivered", "event_emit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check events.brokers"),
		)
	}
}

func (w *Worker) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	if err := w.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("notification", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func (w *Worker) postLabel(post *posts.Post) string {
	return fmt.Sprintf("post #%d (%s)", post.ID, post.DisplayTitle())
}

func (w *Worker) clientName(ctx context.Context, id int64) string {
	client, err := w.store.GetClient(ctx, id)
	if err != nil || client == nil {
		return fmt.Sprintf("client #%d", id)
	}
	return client.Name
}

func (w *Worker) finishCycle(ctx context.Context, report *CycleReport) {
	statsCtx := context.WithoutCancel(ctx)
	counts, err := w.store.Stats(statsCtx, 0)
	if err == nil {
		byName := make(map[string]int, len(counts))
		for status, n := range counts {
			byName[string(status)] = n
		}
		w.metrics.ObserveCycle(report.FinishedAt, byName)
	}

	w.mu.Lock()
	snapshot := *report
	snapshot.Outcomes = append([]Outcome(nil), report.Outcomes...)
	w.lastCycle = &snapshot
	if report.Err != nil {
		w.lastErr = report.Err
	}
	w.mu.Unlock()

	if report.Candidates > 0 || report.Err != nil {
		w.logger.Info("publish cycle complete",
			logging.Int("candidates", report.Candidates),
			logging.Int("published", report.Published),
			logging.Int("failed", report.Failed),
			logging.Int("deferred", report.Deferred),
			logging.Bool("cancelled", report.Cancelled),
			logging.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
			logging.String(logging.FieldEventType, "publish_cycle_complete"),
		)
	}
}

var _ MediaResolver = (*media.Library)(nil)
