package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlatform()
	c.normalizeMedia()
	c.normalizePublisher()
	c.normalizeAuth()
	c.normalizeNotifications()
	c.normalizeEvents()
	c.normalizeMetrics()
	c.normalizeLogging()
	return nil
}

// envOverride returns the trimmed environment value when set, otherwise current.
func envOverride(current, key string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(current)
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = envOverride(c.Paths.APIToken, "POSTFLOW_API_TOKEN")
	return nil
}

func (c *Config) normalizePlatform() {
	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.BaseURL), "/")
	if c.Platform.BaseURL == "" {
		c.Platform.BaseURL = defaultPlatformBaseURL
	}
	c.Platform.AccountID = strings.TrimSpace(c.Platform.AccountID)
	c.Platform.AccessToken = envOverride(c.Platform.AccessToken, "POSTFLOW_PLATFORM_TOKEN")
	if c.Platform.RequestTimeout <= 0 {
		c.Platform.RequestTimeout = defaultPlatformTimeout
	}
	if c.Platform.RequestsPerMinute <= 0 {
		c.Platform.RequestsPerMinute = defaultRequestsPerMinute
	}
}

func (c *Config) normalizeMedia() {
	if len(c.Media.AllowedExtensions) == 0 {
		c.Media.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
	} else {
		exts := make([]string, 0, len(c.Media.AllowedExtensions))
		seen := make(map[string]struct{}, len(c.Media.AllowedExtensions))
		for _, ext := range c.Media.AllowedExtensions {
			normalized := strings.ToLower(strings.TrimSpace(ext))
			if normalized == "" {
				continue
			}
			if !strings.HasPrefix(normalized, ".") {
				normalized = "." + normalized
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			exts = append(exts, normalized)
		}
		if len(exts) == 0 {
			exts = append(exts, defaultAllowedExtensions...)
		}
		c.Media.AllowedExtensions = exts
	}
	c.Media.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Media.PublicBaseURL), "/")
	c.Media.S3Endpoint = strings.TrimSpace(c.Media.S3Endpoint)
	c.Media.S3Bucket = strings.TrimSpace(c.Media.S3Bucket)
	c.Media.S3Region = strings.TrimSpace(c.Media.S3Region)
	c.Media.S3AccessKey = envOverride(c.Media.S3AccessKey, "POSTFLOW_S3_ACCESS_KEY")
	c.Media.S3SecretKey = envOverride(c.Media.S3SecretKey, "POSTFLOW_S3_SECRET_KEY")
	if c.Media.PresignExpiry <= 0 {
		c.Media.PresignExpiry = defaultPresignExpiry
	}
}

func (c *Config) normalizePublisher() {
	if c.Publisher.PollInterval <= 0 {
		c.Publisher.PollInterval = defaultPollInterval
	}
	if c.Publisher.ErrorRetryInterval <= 0 {
		c.Publisher.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeAuth() {
	c.Auth.JWTSecret = envOverride(c.Auth.JWTSecret, "POSTFLOW_JWT_SECRET")
	c.Auth.Issuer = strings.TrimSpace(c.Auth.Issuer)
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = defaultAuthIssuer
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = defaultTokenTTLHours
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeEvents() {
	brokers := make([]string, 0, len(c.Events.Brokers))
	for _, broker := range c.Events.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	c.Events.Brokers = brokers
	c.Events.Topic = strings.TrimSpace(c.Events.Topic)
	if c.Events.Topic == "" {
		c.Events.Topic = defaultEventsTopic
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Namespace = strings.TrimSpace(c.Metrics.Namespace)
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaultMetricsNamespace
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
