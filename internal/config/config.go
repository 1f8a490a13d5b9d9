package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"crate/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage directories and the API bind address.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Catalog contains configuration for the external discography catalog.
type Catalog struct {
	Token             string `toml:"token"`
	BaseURL           string `toml:"base_url"`
	UserAgent         string `toml:"user_agent"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	Burst             int    `toml:"burst"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	PerPage           int    `toml:"per_page"`
}

// Engine contains the retry, resolution, and batching parameters of the
// queue enrichment engine.
type Engine struct {
	// TrackThreshold is the confidence a track-level hit needs before it is
	// accepted as a track match. Lower-confidence hits fall back to the
	// full release.
	TrackThreshold float64 `toml:"track_threshold"`
	// MaxAttempts bounds catalog calls per lookup sequence while rate limited.
	MaxAttempts               int `toml:"max_attempts"`
	InitialBackoffMillis      int `toml:"initial_backoff_ms"`
	MaxBackoffMillis          int `toml:"max_backoff_ms"`
	RetryCooldownSeconds      int `toml:"retry_cooldown_seconds"`
	MaxRetryCooldownSeconds   int `toml:"max_retry_cooldown_seconds"`
	UnresolvedRecheckHours    int `toml:"unresolved_recheck_hours"`
	ErrorRetryIntervalSeconds int `toml:"error_retry_interval_seconds"`
	BatchSize                 int `toml:"batch_size"`
	Concurrency               int `toml:"concurrency"`
	RequestTimeoutSeconds     int `toml:"request_timeout_seconds"`
	ResolveTimeoutSeconds     int `toml:"resolve_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for crate.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories, API bind address
//   - Catalog: discography catalog credentials and client-side rate ceiling
//   - Engine: retry governor, match resolver, and batch parameters
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Catalog Catalog `toml:"catalog"`
	Engine  Engine  `toml:"engine"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/crate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("crate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite database location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath returns the single-instance lock file used by the server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "crate.lock")
}

// CatalogTimeout returns the per-request HTTP timeout for catalog calls.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// InitialBackoff returns the first rate-limit backoff delay.
func (e Engine) InitialBackoff() time.Duration {
	return time.Duration(e.InitialBackoffMillis) * time.Millisecond
}

// MaxBackoff returns the ceiling for a single rate-limit backoff delay.
func (e Engine) MaxBackoff() time.Duration {
	return time.Duration(e.MaxBackoffMillis) * time.Millisecond
}

// RetryCooldown returns the delay before an exhausted entry is looked up again.
func (e Engine) RetryCooldown() time.Duration {
	return time.Duration(e.RetryCooldownSeconds) * time.Second
}

// MaxRetryCooldown caps the growing exhausted-entry cooldown.
func (e Engine) MaxRetryCooldown() time.Duration {
	return time.Duration(e.MaxRetryCooldownSeconds) * time.Second
}

// UnresolvedRecheck returns how long a no-match entry waits before the
// catalog is asked again.
func (e Engine) UnresolvedRecheck() time.Duration {
	return time.Duration(e.UnresolvedRecheckHours) * time.Hour
}

// ErrorRetryInterval returns the delay after a transport failure.
func (e Engine) ErrorRetryInterval() time.Duration {
	return time.Duration(e.ErrorRetryIntervalSeconds) * time.Second
}

// RequestTimeout bounds how long an up-next call waits for lookups.
func (e Engine) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSeconds) * time.Second
}

// ResolveTimeout bounds a detached resolution batch.
func (e Engine) ResolveTimeout() time.Duration {
	return time.Duration(e.ResolveTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML. The catalog token is redacted.
func (c *Config) Encode() ([]byte, error) {
	clone := *c
	if clone.Catalog.Token != "" {
		clone.Catalog.Token = "<redacted>"
	}
	data, err := toml.Marshal(clone)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
