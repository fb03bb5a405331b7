package daemon_test

import (
	"context"
	"strings"
	"testing"

	"postflow/internal/api"
	"postflow/internal/config"
	"postflow/internal/daemon"
	"postflow/internal/logging"
	"postflow/internal/media"
	"postflow/internal/posts"
	"postflow/internal/publisher"
	"postflow/internal/testsupport"
)

type noopPlatform struct{}

func (noopPlatform) Publish(context.Context, media.Asset, string) (string, error) {
	return "ext-1", nil
}

func newDaemon(t *testing.T, cfg *config.Config, store *posts.Store) *daemon.Daemon {
	t.Helper()
	library, err := media.NewLibrary(cfg)
	if err != nil {
		t.Fatalf("media.NewLibrary: %v", err)
	}
	logger := logging.NewNop()
	worker := publisher.NewWorker(cfg, store, library, noopPlatform{}, logger)
	service := api.NewPostService(store, library, api.WithLogger(logger))
	d, err := daemon.New(cfg, logger, daemon.Dependencies{Store: store, Worker: worker, Service: service})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !status.Publishing || !status.Worker.Running {
		t.Fatalf("expected worker to run with credentials configured: %+v", status)
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if len(status.Worker.Counts) != len(posts.AllStatuses()) {
		t.Fatalf("expected counts for every status, got %v", status.Worker.Counts)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.Worker.Running {
		t.Fatalf("expected daemon to be stopped: %+v", status)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	first := newDaemon(t, cfg, store)
	second := newDaemon(t, cfg, store)
	t.Cleanup(func() {
		first.Stop()
		second.Stop()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("expected start after release, got %v", err)
	}
}

func TestDaemonWithoutCredentialsServesWithoutPublishing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Platform.AccessToken = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	t.Cleanup(func() {
		d.Stop()
	})

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to run")
	}
	if status.Publishing || status.Worker.Running {
		t.Fatalf("expected publishing disabled: %+v", status)
	}
	if _, err := d.RunCycle(ctx); err == nil {
		t.Fatal("expected manual cycle to be refused without credentials")
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent || message != "ntfy topic not configured" {
		t.Fatalf("unexpected result sent=%v message=%q", sent, message)
	}
}
