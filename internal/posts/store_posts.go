package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Create inserts a pending post. It fails with ErrValidation when the client
// does not exist or the media reference is empty.
func (s *Store) Create(ctx context.Context, in NewPost) (*Post, error) {
	ctx = ensureContext(ctx)
	mediaRef := strings.TrimSpace(in.MediaRef)
	if mediaRef == "" {
		return nil, fmt.Errorf("%w: media reference is required", ErrValidation)
	}
	if in.ClientID <= 0 {
		return nil, fmt.Errorf("%w: client id is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getClient(ctx, in.ClientID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: client %d does not exist", ErrValidation, in.ClientID)
		}
		return nil, err
	}

	timestamp := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO posts (
            client_id, media_ref, caption, hashtags, scheduled_time,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ClientID,
		mediaRef,
		in.Caption,
		in.Hashtags,
		nullableTime(in.ScheduledTime),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getPost(ctx, id)
}

// Get fetches a post by id. It fails with ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id int64) (*Post, error) {
	return s.getPost(ensureContext(ctx), id)
}

func (s *Store) getPost(ctx context.Context, id int64) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// ListByStatus returns a fresh snapshot of posts in status, in creation order.
// Calling it again restarts the sequence.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Post, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.List(ctx, Filter{Statuses: []Status{status}})
}

// List returns posts matching filter in creation order (or newest first when
// filter.Newest is set).
func (s *Store) List(ctx context.Context, filter Filter) ([]*Post, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.ClientID > 0 {
		clauses = append(clauses, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.Newest {
		query += " ORDER BY id DESC"
	} else {
		query += " ORDER BY id"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, post)
	}
	return out, rows.Err()
}

// UpdateContent replaces caption and hashtags. Only pending posts are
// editable; anything else fails with ErrInvalidTransition.
func (s *Store) UpdateContent(ctx context.Context, id int64, caption, hashtags string) (*Post, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWithRetry(
		ctx,
		`UPDATE posts SET caption = ?, hashtags = ?, updated_at = ? WHERE id = ? AND status = ?`,
		caption,
		hashtags,
		formatTime(time.Now()),
		id,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("update post content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update post content: %w", err)
	}
	if affected == 0 {
		current, err := s.getPost(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: post %d is %s; only pending posts can be edited", ErrInvalidTransition, id, current.Status)
	}
	return s.getPost(ctx, id)
}

// Stats returns post counts grouped by status. A clientID of zero counts
// every client.
func (s *Store) Stats(ctx context.Context, clientID int64) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	query := `SELECT status, COUNT(1) FROM posts`
	var args []any
	if clientID > 0 {
		query += ` WHERE client_id = ?`
		args = append(args, clientID)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("post stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int, len(allStatuses))
	for _, status := range allStatuses {
		stats[status] = 0
	}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
