package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"

	"postflow/internal/api"
	"postflow/internal/auth"
	"postflow/internal/config"
	"postflow/internal/events"
	"postflow/internal/logging"
	"postflow/internal/media"
	"postflow/internal/metrics"
	"postflow/internal/notifications"
	"postflow/internal/platform"
	"postflow/internal/posts"
	"postflow/internal/publisher"
	"postflow/internal/report"
)

// Components are the collaborators shared by the daemon and the one-shot CLI
// commands. Issuer and Metrics are nil when disabled in configuration.
type Components struct {
	Library  *media.Library
	Platform *platform.Client
	Events   events.Sink
	Metrics  *metrics.Metrics
	Notifier notifications.Service
	Issuer   *auth.Issuer
	Service  *api.PostService
	Worker   *publisher.Worker
	Reports  *report.Builder
}

// Assemble builds every component around an already opened store.
func Assemble(cfg *config.Config, store *posts.Store, logger *slog.Logger) (*Components, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("assemble requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	library, err := media.NewLibrary(cfg)
	if err != nil {
		return nil, fmt.Errorf("media library: %w", err)
	}
	sink, err := events.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("event stream: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	issuer, err := auth.NewIssuer(cfg)
	switch {
	case errors.Is(err, auth.ErrDisabled):
		issuer = nil
		logger.Info("client review tokens disabled",
			logging.String(logging.FieldEventType, "client_tokens_disabled"),
			logging.String(logging.FieldErrorHint, "set auth.jwt_secret to enable the client approval API"),
		)
	case err != nil:
		_ = sink.Close()
		return nil, fmt.Errorf("client tokens: %w", err)
	}

	notifier := notifications.NewService(cfg)
	client := platform.NewClient(cfg)

	serviceOpts := []api.Option{
		api.WithLogger(logging.NewComponentLogger(logger, "posts")),
		api.WithNotifier(notifier),
		api.WithEvents(sink),
		api.WithMetrics(m),
	}
	if issuer != nil {
		serviceOpts = append(serviceOpts, api.WithTokenIssuer(issuer))
	}

	return &Components{
		Library:  library,
		Platform: client,
		Events:   sink,
		Metrics:  m,
		Notifier: notifier,
		Issuer:   issuer,
		Service:  api.NewPostService(store, library, serviceOpts...),
		Worker: publisher.NewWorker(cfg, store, library, client, logging.NewComponentLogger(logger, "publisher"),
			publisher.WithNotifier(notifier),
			publisher.WithEvents(sink),
			publisher.WithMetrics(m),
		),
		Reports: report.NewBuilder(store, client, logging.NewComponentLogger(logger, "report")),
	}, nil
}

// Close releases the event stream connection.
func (c *Components) Close() error {
	if c == nil || c.Events == nil {
		return nil
	}
	return c.Events.Close()
}
