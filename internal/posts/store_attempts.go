package posts

import (
	"context"
	"fmt"
	"time"
)

const attemptSelect = `SELECT a.id, a.post_id, p.client_id, a.attempted_at, a.succeeded,
       a.external_id, a.error, a.duration_ms, a.correlation_id
  FROM publish_attempts a JOIN posts p ON p.id = a.post_id`

// RecordAttempt appends one publish attempt to the history.
func (s *Store) RecordAttempt(ctx context.Context, attempt PublishAttempt) (PublishAttempt, error) {
	ctx = ensureContext(ctx)
	if attempt.PostID <= 0 {
		return PublishAttempt{}, fmt.Errorf("%w: attempt requires a post id", ErrValidation)
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWithRetry(ctx,
		`INSERT INTO publish_attempts (
            post_id, attempted_at, succeeded, external_id, error, duration_ms, correlation_id
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.PostID,
		formatTime(attempt.AttemptedAt),
		boolToInt(attempt.Succeeded),
		attempt.ExternalID,
		attempt.Error,
		attempt.Duration.Milliseconds(),
		attempt.CorrelationID,
	)
	if err != nil {
		return PublishAttempt{}, fmt.Errorf("insert publish attempt: %w", err)
	}
	if attempt.ID, err = res.LastInsertId(); err != nil {
		return PublishAttempt{}, fmt.Errorf("last insert id: %w", err)
	}
	attempt.AttemptedAt = attempt.AttemptedAt.UTC()
	return attempt, nil
}

// Attempts returns the publish history of a post, oldest first.
func (s *Store) Attempts(ctx context.Context, postID int64) ([]PublishAttempt, error) {
	return s.queryAttempts(ensureContext(ctx), attemptSelect+` WHERE a.post_id = ? ORDER BY a.id`, postID)
}

// FailedAttemptsSince returns failed attempts at or after since, oldest first.
func (s *Store) FailedAttemptsSince(ctx context.Context, since time.Time) ([]PublishAttempt, error) {
	return s.queryAttempts(ensureContext(ctx),
		attemptSelect+` WHERE a.succeeded = 0 AND a.attempted_at >= ? ORDER BY a.id`,
		formatTime(since),
	)
}

func (s *Store) queryAttempts(ctx context.Context, query string, args ...any) ([]PublishAttempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query publish attempts: %w", err)
	}
	defer rows.Close()

	var out []PublishAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publish attempt: %w", err)
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}
