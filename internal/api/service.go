package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"postflow/internal/events"
	"postflow/internal/logging"
	"postflow/internal/metrics"
	"postflow/internal/notifications"
	"postflow/internal/posts"
	"postflow/internal/services"
	"postflow/internal/textutil"
)

// duplicateThreshold is the caption similarity at which scheduling warns.
const duplicateThreshold = 0.9

// duplicateWindow is how many of the client's newest posts are compared.
const duplicateWindow = 20

// Store abstracts the post store operations the service needs.
type Store interface {
	Create(ctx context.Context, in posts.NewPost) (*posts.Post, error)
	Get(ctx context.Context, id int64) (*posts.Post, error)
	List(ctx context.Context, filter posts.Filter) ([]*posts.Post, error)
	Transition(ctx context.Context, id int64, to posts.Status, feedback string) (*posts.Post, error)
	UpdateContent(ctx context.Context, id int64, caption, hashtags string) (*posts.Post, error)
	Stats(ctx context.Context, clientID int64) (map[posts.Status]int, error)
	CreateClient(ctx context.Context, name, email string) (*posts.Client, error)
	GetClient(ctx context.Context, id int64) (*posts.Client, error)
	ListClients(ctx context.Context) ([]*posts.Client, error)
	Attempts(ctx context.Context, postID int64) ([]posts.PublishAttempt, error)
}

// MediaChecker validates media references at scheduling time.
type MediaChecker interface {
	Validate(ref string) error
	Exists(ctx context.Context, ref string) error
}

// TokenIssuer signs client review tokens.
type TokenIssuer interface {
	Issue(clientID int64) (string, time.Time, error)
}

// Actor identifies who performs a review. The zero value is the admin acting
// on a client's behalf; a non-zero ClientID restricts the actor to that
// client's posts.
type Actor struct {
	ClientID int64
}

// Option customizes a PostService.
type Option func(*PostService)

// WithNotifier sets the notification service used for review events.
func WithNotifier(n notifications.Service) Option {
	return func(s *PostService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithEvents sets the lifecycle event sink.
func WithEvents(sink events.Sink) Option {
	return func(s *PostService) {
		if sink != nil {
			s.events = sink
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PostService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *PostService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenIssuer enables client token issuance.
func WithTokenIssuer(issuer TokenIssuer) Option {
	return func(s *PostService) { s.tokens = issuer }
}

// PostService implements the admin and client post operations.
type PostService struct {
	store    Store
	media    MediaChecker
	validate *validator.Validate
	notifier notifications.Service
	events   events.Sink
	metrics  *metrics.Metrics
	tokens   TokenIssuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPostService wires a service around store and media.
func NewPostService(store Store, media MediaChecker, opts ...Option) *PostService {
	s := &PostService{
		store:    store,
		media:    media,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		notifier: notifications.NewService(nil),
		events:   events.Noop{},
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "api")
	return s
}

// CreateClient registers a client.
func (s *PostService) CreateClient(ctx context.Context, req CreateClientRequest) (Client, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.check(req); err != nil {
		return Client{}, err
	}
	client, err := s.store.CreateClient(ctx, req.Name, req.Email)
	if err != nil {
		return Client{}, err
	}
	s.logger.Info("client created",
		logging.Int64(logging.FieldClientID, client.ID),
		logging.String("name", client.Name),
		logging.String(logging.FieldEventType, "client_created"),
	)
	return FromClient(client), nil
}

// GetClient returns one client by id.
func (s *PostService) GetClient(ctx context.Context, id int64) (Client, error) {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return Client{}, err
	}
	return FromClient(client), nil
}

// ListClients returns every client ordered by id.
func (s *PostService) ListClients(ctx context.Context) ([]Client, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	return FromClients(clients), nil
}

// IssueToken signs a review token for an existing client.
func (s *PostService) IssueToken(ctx context.Context, clientID int64) (TokenResponse, error) {
	if s.tokens == nil {
		return TokenResponse{}, fmt.Errorf("%w: client tokens require auth.jwt_secret", ErrUnavailable)
	}
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return TokenResponse{}, err
	}
	token, expires, err := s.tokens.Issue(clientID)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{ClientID: clientID, Token: token, ExpiresAt: formatTime(expires)}, nil
}

// Schedule validates and creates a pending post. Captions and hashtags are
// normalized; likely duplicates of the client's recent posts produce warnings
// rather than errors.
func (s *PostService) Schedule(ctx context.Context, req ScheduleRequest) (ScheduleResult, error) {
	req.MediaRef = strings.TrimSpace(req.MediaRef)
	if err := s.check(req); err != nil {
		return ScheduleResult{}, err
	}
	caption, hashtags, err := normalizeContent(req.Caption, req.Hashtags)
	if err != nil {
		return ScheduleResult{}, err
	}
	if err := s.checkMedia(ctx, req.MediaRef); err != nil {
		return ScheduleResult{}, err
	}

	var warnings []string
	if req.ScheduledTime != nil && req.ScheduledTime.Before(s.now()) {
		warnings = append(warnings, "scheduled time is in the past; the post publishes on the first cycle after approval")
	}
	dupes, err := s.similarPosts(ctx, req.ClientID, caption)
	if err != nil {
		return ScheduleResult{}, err
	}
	warnings = append(warnings, dupes...)

	var scheduled *time.Time
	if req.ScheduledTime != nil {
		t := req.ScheduledTime.UTC()
		scheduled = &t
	}
	post, err := s.store.Create(ctx, posts.NewPost{
		ClientID:      req.ClientID,
		MediaRef:      req.MediaRef,
		Caption:       caption,
		Hashtags:      hashtags,
		ScheduledTime: scheduled,
	})
	if err != nil {
		return ScheduleResult{}, err
	}

	ctx = services.WithClientID(services.WithPostID(ctx, post.ID), post.ClientID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("post scheduled",
		logging.String("media_ref", post.MediaRef),
		logging.String(logging.FieldEventType, "post_scheduled"),
		logging.Int("warnings", len(warnings)),
	)
	s.metrics.ObserveTransition(string(posts.StatusPending))
	s.emit(ctx, logger, events.TypePostCreated, post)
	return ScheduleResult{Post: FromPost(post), Warnings: warnings}, nil
}

// Edit replaces caption and hashtags while the post is still pending.
func (s *PostService) Edit(ctx context.Context, id int64, req EditRequest) (Post, error) {
	if err := s.check(req); err != nil {
		return Post{}, err
	}
	caption, hashtags, err := normalizeContent(req.Caption, req.Hashtags)
	if err != nil {
		return Post{}, err
	}
	post, err := s.store.UpdateContent(ctx, id, caption, hashtags)
	if err != nil {
		return Post{}, err
	}
	logging.WithContext(services.WithPostID(ctx, id), s.logger).Info("post edited",
		logging.String(logging.FieldEventType, "post_edited"),
	)
	return FromPost(post), nil
}

// Approve moves a pending post to approved.
func (s *PostService) Approve(ctx context.Context, actor Actor, id int64, req ReviewRequest) (Post, error) {
	return s.review(ctx, actor, id, posts.StatusApproved, req)
}

// Reject moves a pending post to rejected.
func (s *PostService) Reject(ctx context.Context, actor Actor, id int64, req ReviewRequest) (Post, error) {
	return s.review(ctx, actor, id, posts.StatusRejected, req)
}

func (s *PostService) review(ctx context.Context, actor Actor, id int64, to posts.Status, req ReviewRequest) (Post, error) {
	req.Feedback = strings.TrimSpace(req.Feedback)
	if err := s.check(req); err != nil {
		return Post{}, err
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if actor.ClientID != 0 && current.ClientID != actor.ClientID {
		return Post{}, fmt.Errorf("%w: post %d belongs to another client", ErrForbidden, id)
	}
	post, err := s.store.Transition(ctx, id, to, req.Feedback)
	if err != nil {
		return Post{}, err
	}

	ctx = services.WithClientID(services.WithPostID(ctx, post.ID), post.ClientID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("post reviewed",
		logging.String(logging.FieldEventType, "post_reviewed"),
		logging.String("decision", string(to)),
		logging.Bool("by_client", actor.ClientID != 0),
	)
	s.metrics.ObserveTransition(string(to))
	eventType := events.TypePostApproved
	if to == posts.StatusRejected {
		eventType = events.TypePostRejected
	}
	s.emit(ctx, logger, eventType, post)

	clientName := ""
	if client, err := s.store.GetClient(ctx, post.ClientID); err == nil {
		clientName = client.Name
	}
	if err := s.notifier.Publish(ctx, notifications.EventPostReviewed, notifications.Payload{
		"post":     fmt.Sprintf("post #%d (%s)", post.ID, post.DisplayTitle()),
		"client":   clientName,
		"decision": string(to),
		"feedback": post.Feedback,
	}); err != nil {
		logging.WarnWithContext(logger, "review notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
	return FromPost(post), nil
}

// Describe returns a post and its publish history.
func (s *PostService) Describe(ctx context.Context, id int64) (PostDetail, error) {
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return PostDetail{}, err
	}
	attempts, err := s.store.Attempts(ctx, id)
	if err != nil {
		return PostDetail{}, err
	}
	return PostDetail{Post: FromPost(post), Attempts: FromAttempts(attempts)}, nil
}

// GetForClient returns a post only when clientID owns it.
func (s *PostService) GetForClient(ctx context.Context, clientID, id int64) (Post, error) {
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if post.ClientID != clientID {
		return Post{}, fmt.Errorf("%w: post %d belongs to another client", ErrForbidden, id)
	}
	return FromPost(post), nil
}

// List returns posts matching query in creation order unless Newest is set.
func (s *PostService) List(ctx context.Context, query ListQuery) ([]Post, error) {
	filter := posts.Filter{ClientID: query.ClientID, Limit: query.Limit, Newest: query.Newest}
	for _, raw := range query.Statuses {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := posts.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("%w: unknown status %q", posts.ErrValidation, part)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	list, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromPosts(list), nil
}

// PendingFor lists the client's posts awaiting review.
func (s *PostService) PendingFor(ctx context.Context, clientID int64) ([]Post, error) {
	return s.List(ctx, ListQuery{ClientID: clientID, Statuses: []string{string(posts.StatusPending)}})
}

// Attempts returns the publish history of one post.
func (s *PostService) Attempts(ctx context.Context, id int64) ([]Attempt, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	attempts, err := s.store.Attempts(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromAttempts(attempts), nil
}

// Stats returns per-status counts, optionally for one client.
func (s *PostService) Stats(ctx context.Context, clientID int64) (map[string]int, error) {
	stats, err := s.store.Stats(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return MergeStats(stats), nil
}

func (s *PostService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", posts.ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", posts.ErrValidation, err)
	}
	return nil
}

func (s *PostService) checkMedia(ctx context.Context, ref string) error {
	if s.media == nil {
		return nil
	}
	if err := s.media.Validate(ref); err != nil {
		return fmt.Errorf("%w: %v", posts.ErrValidation, err)
	}
	if err := s.media.Exists(ctx, ref); err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrValidation) {
			return fmt.Errorf("%w: media %q: %v", posts.ErrValidation, ref, err)
		}
		return err
	}
	return nil
}

func (s *PostService) similarPosts(ctx context.Context, clientID int64, caption string) ([]string, error) {
	candidate := textutil.NewFingerprint(caption)
	if candidate == nil {
		return nil, nil
	}
	recent, err := s.store.List(ctx, posts.Filter{ClientID: clientID, Newest: true, Limit: duplicateWindow})
	if err != nil {
		return nil, err
	}
	var warnings []string
	for _, post := range recent {
		if post.Status == posts.StatusRejected {
			continue
		}
		score := textutil.CosineSimilarity(candidate, textutil.NewFingerprint(post.Caption))
		if score >= duplicateThreshold {
			warnings = append(warnings, fmt.Sprintf("caption is %.0f%% similar to post #%d (%s)", score*100, post.ID, post.Status))
		}
	}
	return warnings, nil
}

func (s *PostService) emit(ctx context.Context, logger *slog.Logger, eventType events.Type, post *posts.Post) {
	requestID, _ := services.RequestIDFromContext(ctx)
	err := s.events.Emit(ctx, events.Event{
		Type:          eventType,
		PostID:        post.ID,
		ClientID:      post.ClientID,
		Status:        string(post.Status),
		CorrelationID: requestID,
		OccurredAt:    s.now().UTC(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "lifecycle event not delivered", "event_emit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check events.brokers"),
		)
	}
}

func normalizeContent(caption, hashtags string) (string, string, error) {
	caption = textutil.NormalizeCaption(caption)
	tags := textutil.ParseHashtags(hashtags)
	if len(tags) > textutil.MaxHashtags {
		return "", "", fmt.Errorf("%w: %d hashtags exceeds the limit of %d", posts.ErrValidation, len(tags), textutil.MaxHashtags)
	}
	hashtags = textutil.NormalizeHashtags(hashtags)
	if n := utf8.RuneCountInString(textutil.ComposeCaption(caption, hashtags)); n > textutil.MaxCaptionRunes {
		return "", "", fmt.Errorf("%w: caption with hashtags is %d characters, limit is %d", posts.ErrValidation, n, textutil.MaxCaptionRunes)
	}
	return caption, hashtags, nil
}
