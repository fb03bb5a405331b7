package posts

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a post.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPublished Status = "published"
)

var allStatuses = []Status{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusPublished,
}

type statusTransition struct {
	from Status
	to   Status
}

var allowedTransitions = map[statusTransition]struct{}{
	{from: StatusPending, to: StatusApproved}:   {},
	{from: StatusPending, to: StatusRejected}:   {},
	{from: StatusApproved, to: StatusPublished}: {},
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus attempts to map a string into a known post status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	for _, status := range allStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no edge leaves s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusPublished
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	_, ok := allowedTransitions[statusTransition{from: from, to: to}]
	return ok
}

// Post is a scheduled piece of content moving through review and publishing.
type Post struct {
	ID            int64
	ClientID      int64
	MediaRef      string
	Caption       string
	Hashtags      string
	ScheduledTime *time.Time
	Status        Status
	Feedback      string
	ExternalID    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PublishedAt   *time.Time
}

// Due reports whether the post's scheduled time has passed at now. Posts
// without a scheduled time are always due.
func (p *Post) Due(now time.Time) bool {
	if p == nil || p.ScheduledTime == nil {
		return true
	}
	return !p.ScheduledTime.After(now)
}

// Clone returns a deep copy so snapshots never alias store results.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	if p.ScheduledTime != nil {
		t := *p.ScheduledTime
		cp.ScheduledTime = &t
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

// DisplayTitle returns a short label for logs and tables.
func (p *Post) DisplayTitle() string {
	if p == nil {
		return ""
	}
	caption := strings.TrimSpace(p.Caption)
	if line, _, ok := strings.Cut(caption, "\n"); ok {
		caption = line
	}
	runes := []rune(caption)
	if len(runes) > 40 {
		caption = string(runes[:39]) + "…"
	}
	if caption == "" {
		return fmt.Sprintf("post #%d", p.ID)
	}
	return caption
}

// NewPost holds the fields an admin supplies when scheduling a post.
type NewPost struct {
	ClientID      int64
	MediaRef      string
	Caption       string
	Hashtags      string
	ScheduledTime *time.Time
}

// Client is the stakeholder who owns posts and reviews them.
type Client struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// PublishAttempt records one call to the publishing platform.
type PublishAttempt struct {
	ID            int64
	PostID        int64
	ClientID      int64
	AttemptedAt   time.Time
	Succeeded     bool
	ExternalID    string
	Error         string
	Duration      time.Duration
	CorrelationID string
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ClientID int64
	Statuses []Status
	// Newest orders by descending id; the default is creation order.
	Newest bool
	Limit  int
}

// DatabaseHealth describes diagnostic information about the post database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	TotalPosts       int
	TotalClients     int
	IntegrityCheck   bool
	Error            string
}
