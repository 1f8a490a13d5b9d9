package config

const (
	defaultDataDir                   = "~/.local/share/crate"
	defaultLogDir                    = "~/.local/share/crate/logs"
	defaultAPIBind                   = "127.0.0.1:7488"
	defaultCatalogBaseURL            = "https://api.discogs.com"
	defaultCatalogUserAgent          = "crate/dev"
	defaultCatalogRequestsPerMinute  = 55
	defaultCatalogBurst              = 3
	defaultCatalogTimeoutSeconds     = 10
	defaultCatalogPerPage            = 10
	defaultTrackThreshold            = 0.75
	defaultMaxAttempts               = 3
	defaultInitialBackoffMillis      = 1000
	defaultMaxBackoffMillis          = 30000
	defaultRetryCooldownSeconds      = 300
	defaultMaxRetryCooldownSeconds   = 6 * 3600
	defaultUnresolvedRecheckHours    = 24 * 7
	defaultErrorRetryIntervalSeconds = 60
	defaultBatchSize                 = 24
	defaultConcurrency               = 4
	defaultRequestTimeoutSeconds     = 8
	defaultResolveTimeoutSeconds     = 60
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Catalog: Catalog{
			BaseURL:           defaultCatalogBaseURL,
			UserAgent:         defaultCatalogUserAgent,
			RequestsPerMinute: defaultCatalogRequestsPerMinute,
			Burst:             defaultCatalogBurst,
			TimeoutSeconds:    defaultCatalogTimeoutSeconds,
			PerPage:           defaultCatalogPerPage,
		},
		Engine: Engine{
			TrackThreshold:            defaultTrackThreshold,
			MaxAttempts:               defaultMaxAttempts,
			InitialBackoffMillis:      defaultInitialBackoffMillis,
			MaxBackoffMillis:          defaultMaxBackoffMillis,
			RetryCooldownSeconds:      defaultRetryCooldownSeconds,
			MaxRetryCooldownSeconds:   defaultMaxRetryCooldownSeconds,
			UnresolvedRecheckHours:    defaultUnresolvedRecheckHours,
			ErrorRetryIntervalSeconds: defaultErrorRetryIntervalSeconds,
			BatchSize:                 defaultBatchSize,
			Concurrency:               defaultConcurrency,
			RequestTimeoutSeconds:     defaultRequestTimeoutSeconds,
			ResolveTimeoutSeconds:     defaultResolveTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
