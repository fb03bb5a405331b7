package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// minJWTSecretLength is the shortest HMAC secret accepted for client tokens.
const minJWTSecretLength = 16

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlatform(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validatePublisher(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlatform() error {
	parsed, err := url.Parse(c.Platform.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("platform.base_url must be an absolute URL, got %q", c.Platform.BaseURL)
	}
	return ensurePositiveMap(map[string]int{
		"platform.request_timeout":      c.Platform.RequestTimeout,
		"platform.requests_per_minute":  c.Platform.RequestsPerMinute,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

// PlatformReady reports whether publish credentials are configured. The daemon
// refuses to start the worker without them; CLI commands that only touch the
// store do not need them.
func (c *Config) PlatformReady() error {
	if strings.TrimSpace(c.Platform.AccountID) == "" {
		return errors.New("platform.account_id must be set")
	}
	if strings.TrimSpace(c.Platform.AccessToken) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("platform.access_token is required. Set POSTFLOW_PLATFORM_TOKEN env var or edit %s (create with 'postflow config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateMedia() error {
	m := c.Media
	if m.S3Endpoint == "" && m.S3Bucket == "" {
		return nil
	}
	if m.S3Endpoint == "" {
		return errors.New("media.s3_endpoint must be set when media.s3_bucket is set")
	}
	if m.S3Bucket == "" {
		return errors.New("media.s3_bucket must be set when media.s3_endpoint is set")
	}
	if strings.Contains(m.S3Endpoint, "://") {
		return fmt.Errorf("media.s3_endpoint must be host[:port] without a scheme, got %q", m.S3Endpoint)
	}
	return nil
}

func (c *Config) validatePublisher() error {
	return ensurePositiveMap(map[string]int{
		"publisher.poll_interval":        c.Publisher.PollInterval,
		"publisher.error_retry_interval": c.Publisher.ErrorRetryInterval,
	})
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	}
	if c.Auth.TokenTTLHours <= 0 {
		return errors.New("auth.token_ttl_hours must be positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return errors.New("events.brokers must include at least one broker when events.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
