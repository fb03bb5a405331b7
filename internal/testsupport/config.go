package testsupport

import (
	"path/filepath"
	"testing"

	"postflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Platform.AccountID = "test-account"
	cfgVal.Platform.AccessToken = "test-token"
	cfgVal.Auth.JWTSecret = "test-secret-0123456789abcdef"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPlatformURL points the platform client at a test server.
func WithPlatformURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Platform.BaseURL = url
	}
}

// WithAPIToken sets the admin bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithHonorSchedule toggles scheduled_time gating in the publish worker.
func WithHonorSchedule(honor bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Publisher.HonorSchedule = honor
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
