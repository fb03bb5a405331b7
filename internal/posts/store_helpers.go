package posts

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const postColumns = "id, client_id, media_ref, caption, hashtags, scheduled_time, status, feedback, external_id, created_at, updated_at, published_at"

const clientColumns = "id, name, email, created_at"

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(scanner rowScanner) (*Post, error) {
	var (
		post         Post
		statusStr    string
		scheduledRaw sql.NullString
		createdRaw   string
		updatedRaw   string
		publishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&post.ID,
		&post.ClientID,
		&post.MediaRef,
		&post.Caption,
		&post.Hashtags,
		&scheduledRaw,
		&statusStr,
		&post.Feedback,
		&post.ExternalID,
		&createdRaw,
		&updatedRaw,
		&publishedRaw,
	); err != nil {
		return nil, err
	}
	post.Status = Status(statusStr)
	post.ScheduledTime = parseNullableTime(scheduledRaw)
	post.PublishedAt = parseNullableTime(publishedRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		post.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		post.UpdatedAt = updated
	}
	return &post, nil
}

func scanClient(scanner rowScanner) (*Client, error) {
	var (
		client     Client
		createdRaw string
	)
	if err := scanner.Scan(&client.ID, &client.Name, &client.Email, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		client.CreatedAt = created
	}
	return &client, nil
}

func scanAttempt(scanner rowScanner) (PublishAttempt, error) {
	var (
		attempt      PublishAttempt
		attemptedRaw string
		succeeded    int
		durationMS   int64
	)
	if err := scanner.Scan(
		&attempt.ID,
		&attempt.PostID,
		&attempt.ClientID,
		&attemptedRaw,
		&succeeded,
		&attempt.ExternalID,
		&attempt.Error,
		&durationMS,
		&attempt.CorrelationID,
	); err != nil {
		return PublishAttempt{}, err
	}
	attempt.Succeeded = succeeded != 0
	attempt.Duration = time.Duration(durationMS) * time.Millisecond
	if attempted, err := parseTimeString(attemptedRaw); err == nil {
		attempt.AttemptedAt = attempted
	}
	return attempt, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	parsed, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
