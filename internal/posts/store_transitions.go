package posts

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Transition moves a post along one allowed edge. It fails with ErrNotFound
// for an unknown id and ErrInvalidTransition for any other edge. Leaving
// pending overwrites feedback; approved -> published leaves it untouched.
func (s *Store) Transition(ctx context.Context, id int64, to Status, feedback string) (*Post, error) {
	return s.transition(ensureContext(ctx), id, to, feedback, "")
}

// MarkPublished commits a successful publish: approved -> published with the
// platform's external id and the publish time.
func (s *Store) MarkPublished(ctx context.Context, id int64, externalID string) (*Post, error) {
	return s.transition(ensureContext(ctx), id, StatusPublished, "", externalID)
}

func (s *Store) transition(ctx context.Context, id int64, to Status, feedback, externalID string) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getPost(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.Status
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: post %d cannot move from %s to %s", ErrInvalidTransition, id, from, to)
	}

	now := formatTime(time.Now())
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{to, now}
	if from == StatusPending {
		sets = append(sets, "feedback = ?")
		args = append(args, feedback)
	}
	if to == StatusPublished {
		sets = append(sets, "external_id = ?", "published_at = ?")
		args = append(args, externalID, now)
	}
	args = append(args, id, from)

	// The status guard makes the update a compare-and-set against writers in
	// other processes that share the database file.
	res, err := s.execWithRetry(ctx,
		`UPDATE posts SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("transition post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition post: %w", err)
	}
	if affected == 0 {
		latest, err := s.getPost(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: post %d changed to %s concurrently", ErrInvalidTransition, id, latest.Status)
	}
	return s.getPost(ctx, id)
}
