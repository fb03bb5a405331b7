package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// CreateClient registers a client. Emails are unique and stored lowercase.
func (s *Store) CreateClient(ctx context.Context, name, email string) (*Client, error) {
	ctx = ensureContext(ctx)
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWithRetry(ctx,
		`INSERT INTO clients (name, email, created_at) VALUES (?, ?, ?)`,
		name, email, formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email %s is already registered", ErrValidation, email)
		}
		return nil, fmt.Errorf("insert client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getClient(ctx, id)
}

// GetClient fetches a client by id. It fails with ErrNotFound if absent.
func (s *Store) GetClient(ctx context.Context, id int64) (*Client, error) {
	return s.getClient(ensureContext(ctx), id)
}

func (s *Store) getClient(ctx context.Context, id int64) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// ClientByEmail resolves the client owning email.
func (s *Store) ClientByEmail(ctx context.Context, email string) (*Client, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE email = ?`, email)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("get client by email: %w", err)
	}
	return client, nil
}

// ListClients returns every client in id order.
func (s *Store) ListClients(ctx context.Context) ([]*Client, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, client)
	}
	return out, rows.Err()
}
