package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"postflow/internal/api"
	"postflow/internal/auth"
	"postflow/internal/config"
	"postflow/internal/logging"
	"postflow/internal/metrics"
	"postflow/internal/notifications"
	"postflow/internal/posts"
	"postflow/internal/preflight"
	"postflow/internal/publisher"
	"postflow/internal/report"
)

// Dependencies are the long-lived collaborators the daemon coordinates.
// Issuer, Metrics, and Notifier are optional.
type Dependencies struct {
	Store    *posts.Store
	Worker   *publisher.Worker
	Service  *api.PostService
	Reports  *report.Builder
	Issuer   *auth.Issuer
	Metrics  *metrics.Metrics
	Notifier notifications.Service
	Checks   []preflight.Result
}

// Daemon coordinates the publish worker and the HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *posts.Store
	worker   *publisher.Worker
	service  *api.PostService
	reports  *report.Builder
	issuer   *auth.Issuer
	metrics  *metrics.Metrics
	notifier notifications.Service
	checks   []preflight.Result
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running    atomic.Bool
	publishing atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, deps Dependencies) (*Daemon, error) {
	if cfg == nil || logger == nil || deps.Store == nil || deps.Worker == nil || deps.Service == nil {
		return nil, errors.New("daemon requires config, logger, store, worker, and post service")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    deps.Store,
		worker:   deps.Worker,
		service:  deps.Service,
		reports:  deps.Reports,
		issuer:   deps.Issuer,
		metrics:  deps.Metrics,
		notifier: notifier,
		checks:   deps.Checks,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the API server, and launches the
// publish worker when platform credentials are configured.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another postflow daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		d.release()
		return err
	}

	if err := d.cfg.PlatformReady(); err != nil {
		logging.WarnWithContext(d.logger, "publishing disabled", "daemon_publishing_disabled",
			logging.String("reason", err.Error()),
			logging.String(logging.FieldImpact, "approved posts stay queued until credentials are configured"),
			logging.String(logging.FieldErrorHint, "set platform.account_id and platform.access_token"),
		)
	} else {
		if err := d.worker.Start(d.ctx); err != nil {
			d.api.stop()
			d.release()
			return fmt.Errorf("start publisher: %w", err)
		}
		d.publishing.Store(true)
	}

	d.running.Store(true)
	d.logger.Info("postflow daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("publishing", d.publishing.Load()),
	)
	return nil
}

// Stop stops the worker and the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.worker.Stop()
	d.publishing.Store(false)
	d.api.stop()
	d.release()
	d.running.Store(false)
	d.logger.Info("postflow daemon stopped")
}

func (d *Daemon) release() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns daemon runtime information.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Publishing:   d.publishing.Load(),
		Worker:       api.FromWorkerStatus(d.worker.Status(ctx)),
	}
	for _, check := range d.checks {
		status.Checks = append(status.Checks, api.Check{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
	}
	return status
}

// RunCycle performs one publish cycle on demand. It refuses when platform
// credentials are missing.
func (d *Daemon) RunCycle(ctx context.Context) (*api.CycleSummary, error) {
	if err := d.cfg.PlatformReady(); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrUnavailable, err)
	}
	report := d.worker.RunCycle(ctx)
	if report.Err != nil {
		return api.FromCycleReport(&report), report.Err
	}
	return api.FromCycleReport(&report), nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTestNotification, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
