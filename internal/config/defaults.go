package config

const (
	defaultConfigPath         = "~/.config/postflow/config.toml"
	defaultDataDir            = "~/.local/share/postflow"
	defaultLogDir             = "~/.local/share/postflow/logs"
	defaultMediaDir           = "~/.local/share/postflow/media"
	defaultAPIBind            = "127.0.0.1:7490"
	defaultPlatformBaseURL    = "https://graph.facebook.com/v19.0"
	defaultPlatformTimeout    = 30
	defaultRequestsPerMinute  = 30
	defaultPresignExpiry      = 3600
	defaultPollInterval       = 60
	defaultErrorRetryInterval = 30
	defaultAuthIssuer         = "postflow"
	defaultTokenTTLHours      = 24 * 30
	defaultNotifyTimeout      = 10
	defaultEventsTopic        = "postflow.post-events"
	defaultMetricsNamespace   = "postflow"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

var defaultAllowedExtensions = []string{".jpg", ".jpeg", ".png", ".mp4", ".mov"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			MediaDir: defaultMediaDir,
			APIBind:  defaultAPIBind,
		},
		Platform: Platform{
			BaseURL:           defaultPlatformBaseURL,
			RequestTimeout:    defaultPlatformTimeout,
			RequestsPerMinute: defaultRequestsPerMinute,
		},
		Media: Media{
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
			S3UseSSL:          true,
			PresignExpiry:     defaultPresignExpiry,
		},
		Publisher: Publisher{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HonorSchedule:      true,
		},
		Auth: Auth{
			Issuer:        defaultAuthIssuer,
			TokenTTLHours: defaultTokenTTLHours,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyTimeout,
			PublishFailures: true,
			Published:       true,
			Reviews:         true,
		},
		Events: Events{
			Topic: defaultEventsTopic,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: defaultMetricsNamespace,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
