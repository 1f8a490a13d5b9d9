package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	if c.Catalog.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/crate/config.toml"
		}
		return fmt.Errorf("catalog.token is required. Set CRATE_CATALOG_TOKEN env var or edit %s (create with 'crate config init')", defaultPath)
	}
	return ensurePositiveMap(map[string]int{
		"catalog.requests_per_minute": c.Catalog.RequestsPerMinute,
		"catalog.burst":               c.Catalog.Burst,
		"catalog.timeout_seconds":     c.Catalog.TimeoutSeconds,
		"catalog.per_page":            c.Catalog.PerPage,
	})
}

func (c *Config) validateEngine() error {
	e := c.Engine
	if e.TrackThreshold < 0 || e.TrackThreshold > 1 {
		return errors.New("engine.track_threshold must be between 0 and 1")
	}
	if err := ensurePositiveMap(map[string]int{
		"engine.max_attempts":                 e.MaxAttempts,
		"engine.initial_backoff_ms":           e.InitialBackoffMillis,
		"engine.max_backoff_ms":               e.MaxBackoffMillis,
		"engine.retry_cooldown_seconds":       e.RetryCooldownSeconds,
		"engine.max_retry_cooldown_seconds":   e.MaxRetryCooldownSeconds,
		"engine.unresolved_recheck_hours":     e.UnresolvedRecheckHours,
		"engine.error_retry_interval_seconds": e.ErrorRetryIntervalSeconds,
		"engine.batch_size":                   e.BatchSize,
		"engine.concurrency":                  e.Concurrency,
		"engine.request_timeout_seconds":      e.RequestTimeoutSeconds,
		"engine.resolve_timeout_seconds":      e.ResolveTimeoutSeconds,
	}); err != nil {
		return err
	}
	if e.MaxBackoffMillis < e.InitialBackoffMillis {
		return errors.New("engine.max_backoff_ms must be at least engine.initial_backoff_ms")
	}
	if e.MaxRetryCooldownSeconds < e.RetryCooldownSeconds {
		return errors.New("engine.max_retry_cooldown_seconds must be at least engine.retry_cooldown_seconds")
	}
	if e.ResolveTimeoutSeconds < e.RequestTimeoutSeconds {
		return errors.New("engine.resolve_timeout_seconds must be at least engine.request_timeout_seconds")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
