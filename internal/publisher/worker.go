package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"postflow/internal/config"
	"postflow/internal/events"
	"postflow/internal/logging"
	"postflow/internal/media"
	"postflow/internal/metrics"
	"postflow/internal/notifications"
	"postflow/internal/platform"
	"postflow/internal/posts"
)

// sideEffectTimeout bounds event and notification delivery per post.
const sideEffectTimeout = 10 * time.Second

// PostStore abstracts the store operations the worker needs.
type PostStore interface {
	ListByStatus(ctx context.Context, status posts.Status) ([]*posts.Post, error)
	MarkPublished(ctx context.Context, id int64, externalID string) (*posts.Post, error)
	RecordAttempt(ctx context.Context, attempt posts.PublishAttempt) (posts.PublishAttempt, error)
	Stats(ctx context.Context, clientID int64) (map[posts.Status]int, error)
	GetClient(ctx context.Context, id int64) (*posts.Client, error)
}

// MediaResolver turns a media reference into a publishable asset.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (media.Asset, error)
}

// Option configures optional Worker behavior.
type Option func(*Worker)

// WithNotifier sets the notification service.
func WithNotifier(n notifications.Service) Option {
	return func(w *Worker) {
		if n != nil {
			w.notifier = n
		}
	}
}

// WithEvents sets the lifecycle event sink.
func WithEvents(sink events.Sink) Option {
	return func(w *Worker) {
		if sink != nil {
			w.events = sink
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithClock overrides the time source used for schedule gating.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithIntervals overrides the configured poll and error retry intervals.
func WithIntervals(poll, retry time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = poll
		w.retryInterval = retry
	}
}

// Worker publishes approved posts on a fixed interval.
type Worker struct {
	store          PostStore
	media          MediaResolver
	platform       platform.Publisher
	logger         *slog.Logger
	notifier       notifications.Service
	events         events.Sink
	metrics        *metrics.Metrics
	now            func() time.Time
	pollInterval   time.Duration
	retryInterval  time.Duration
	publishTimeout time.Duration
	honorSchedule  bool

	// cycleMu keeps RunCycle calls from overlapping when a manual cycle
	// races the background loop.
	cycleMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastErr   error
	lastCycle *CycleReport
}

// NewWorker constructs a worker from configuration and its collaborators.
func NewWorker(cfg *config.Config, store PostStore, resolver MediaResolver, publisher platform.Publisher, logger *slog.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Worker{
		store:          store,
		media:          resolver,
		platform:       publisher,
		logger:         logging.NewComponentLogger(logger, "publisher"),
		notifier:       notifications.NewService(nil),
		events:         events.Noop{},
		now:            time.Now,
		pollInterval:   time.Duration(cfg.Publisher.PollInterval) * time.Second,
		retryInterval:  time.Duration(cfg.Publisher.ErrorRetryInterval) * time.Second,
		publishTimeout: time.Duration(cfg.Platform.RequestTimeout) * time.Second,
		honorSchedule:  cfg.Publisher.HonorSchedule,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}
