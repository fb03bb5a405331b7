package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"postflow/internal/logging"
	"postflow/internal/platform"
	"postflow/internal/posts"
	"postflow/internal/textutil"
)

const (
	defaultWindow = 7 * 24 * time.Hour
	defaultRecent = 10
)

// Store abstracts the read-only store calls reports need.
type Store interface {
	GetClient(ctx context.Context, id int64) (*posts.Client, error)
	List(ctx context.Context, filter posts.Filter) ([]*posts.Post, error)
	Stats(ctx context.Context, clientID int64) (map[posts.Status]int, error)
	FailedAttemptsSince(ctx context.Context, since time.Time) ([]posts.PublishAttempt, error)
}

// InsightsFetcher reads engagement counters for a published post.
type InsightsFetcher interface {
	Insights(ctx context.Context, externalID string) (platform.Insights, error)
}

// Options select what a report covers.
type Options struct {
	// ClientID restricts the report to one client; zero covers everyone.
	ClientID int64
	// Window is how far back failures are collected.
	Window time.Duration
	// Recent is how many of the newest posts are listed.
	Recent int
	// Engagement fetches like and comment counts for published posts.
	Engagement bool
}

// ClientInfo identifies the client a report covers.
type ClientInfo struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PostRow is one line of the recent posts section.
type PostRow struct {
	ID            int64      `json:"id"`
	ClientID      int64      `json:"clientId"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	ExternalID    string     `json:"externalId,omitempty"`
	Feedback      string     `json:"feedback,omitempty"`
}

// FailureRow is one failed publish attempt.
type FailureRow struct {
	PostID      int64     `json:"postId"`
	ClientID    int64     `json:"clientId"`
	AttemptedAt time.Time `json:"attemptedAt"`
	Error       string    `json:"error"`
}

// EngagementRow holds platform counters for a published post.
type EngagementRow struct {
	PostID     int64  `json:"postId"`
	ExternalID string `json:"externalId"`
	Likes      int    `json:"likes"`
	Comments   int    `json:"comments"`
	Error      string `json:"error,omitempty"`
}

// Report is the assembled activity summary.
type Report struct {
	GeneratedAt   time.Time       `json:"generatedAt"`
	Since         time.Time       `json:"since"`
	Client        *ClientInfo     `json:"client,omitempty"`
	Counts        map[string]int  `json:"counts"`
	Recent        []PostRow       `json:"recent"`
	Failures      []FailureRow    `json:"failures"`
	Engagement    []EngagementRow `json:"engagement,omitempty"`
	TotalLikes    int             `json:"totalLikes"`
	TotalComments int             `json:"totalComments"`
}

// Builder assembles reports from the store.
type Builder struct {
	store    Store
	insights InsightsFetcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewBuilder returns a Builder. insights may be nil to disable engagement.
func NewBuilder(store Store, insights InsightsFetcher, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		store:    store,
		insights: insights,
		logger:   logging.NewComponentLogger(logger, "report"),
		now:      time.Now,
	}
}

// Build assembles a report for opts.
func (b *Builder) Build(ctx context.Context, opts Options) (Report, error) {
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.Recent <= 0 {
		opts.Recent = defaultRecent
	}
	now := b.now().UTC()
	rep := Report{GeneratedAt: now, Since: now.Add(-opts.Window)}

	if opts.ClientID != 0 {
		client, err := b.store.GetClient(ctx, opts.ClientID)
		if err != nil {
			return Report{}, err
		}
		rep.Client = &ClientInfo{ID: client.ID, Name: client.Name, Email: client.Email}
	}

	stats, err := b.store.Stats(ctx, opts.ClientID)
	if err != nil {
		return Report{}, fmt.Errorf("report stats: %w", err)
	}
	rep.Counts = make(map[string]int, len(stats))
	for _, status := range posts.AllStatuses() {
		rep.Counts[string(status)] = stats[status]
	}

	recent, err := b.store.List(ctx, posts.Filter{ClientID: opts.ClientID, Newest: true, Limit: opts.Recent})
	if err != nil {
		return Report{}, fmt.Errorf("report posts: %w", err)
	}
	rep.Recent = make([]PostRow, 0, len(recent))
	for _, post := range recent {
		rep.Recent = append(rep.Recent, PostRow{
			ID:            post.ID,
			ClientID:      post.ClientID,
			Title:         post.DisplayTitle(),
			Status:        string(post.Status),
			ScheduledTime: post.ScheduledTime,
			PublishedAt:   post.PublishedAt,
			ExternalID:    post.ExternalID,
			Feedback:      post.Feedback,
		})
	}

	failures, err := b.store.FailedAttemptsSince(ctx, rep.Since)
	if err != nil {
		return Report{}, fmt.Errorf("report failures: %w", err)
	}
	rep.Failures = make([]FailureRow, 0, len(failures))
	for _, attempt := range failures {
		if opts.ClientID != 0 && attempt.ClientID != opts.ClientID {
			continue
		}
		rep.Failures = append(rep.Failures, FailureRow{
			PostID:      attempt.PostID,
			ClientID:    attempt.ClientID,
			AttemptedAt: attempt.AttemptedAt,
			Error:       attempt.Error,
		})
	}
	sort.SliceStable(rep.Failures, func(i, j int) bool {
		return rep.Failures[i].AttemptedAt.After(rep.Failures[j].AttemptedAt)
	})

	if opts.Engagement && b.insights != nil {
		b.collectEngagement(ctx, &rep, recent)
	}
	return rep, nil
}

func (b *Builder) collectEngagement(ctx context.Context, rep *Report, recent []*posts.Post) {
	for _, post := range recent {
		if post.Status != posts.StatusPublished || post.ExternalID == "" {
			continue
		}
		row := EngagementRow{PostID: post.ID, ExternalID: post.ExternalID}
		insights, err := b.insights.Insights(ctx, post.ExternalID)
		if err != nil {
			row.Error = err.Error()
			b.logger.Warn("engagement lookup failed",
				logging.Int64(logging.FieldPostID, post.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "insights_failed"),
				logging.String(logging.FieldErrorHint, "check platform.access_token permissions"),
			)
		} else {
			row.Likes = insights.Likes
			row.Comments = insights.Comments
			rep.TotalLikes += insights.Likes
			rep.TotalComments += insights.Comments
		}
		rep.Engagement = append(rep.Engagement, row)
	}
}

// Filename returns the conventional file name for a saved report:
// "<client>_report.txt", or "all-clients_report.txt" for global reports.
func Filename(rep Report) string {
	name := "all-clients"
	if rep.Client != nil {
		name = textutil.Slug(rep.Client.Name)
	}
	return name + "_report.txt"
}
