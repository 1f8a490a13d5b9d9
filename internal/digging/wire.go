package digging

import (
	"fmt"
	"log/slog"
	"net/http"

	"crate/internal/catalog"
	"crate/internal/config"
	"crate/internal/governor"
	"crate/internal/limiter"
	"crate/internal/resolver"
)

// NewFromConfig builds the catalog client, shared limiter, retry governor,
// and resolver policy described by cfg and returns the service using them.
func NewFromConfig(cfg *config.Config, store Store, logger *slog.Logger, options ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("digging: config required")
	}
	pool := limiter.New(cfg.Catalog.RequestsPerMinute, cfg.Catalog.Burst, cfg.Engine.Concurrency)
	client, err := catalog.New(
		cfg.Catalog.Token,
		cfg.Catalog.BaseURL,
		cfg.Catalog.UserAgent,
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.CatalogTimeout()}),
		catalog.WithPerPage(cfg.Catalog.PerPage),
		catalog.WithThrottler(pool),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	opts := governor.DefaultOptions()
	opts.MaxAttempts = cfg.Engine.MaxAttempts
	opts.InitialBackoff = cfg.Engine.InitialBackoff()
	opts.MaxBackoff = cfg.Engine.MaxBackoff()
	gov := governor.New(client, pool, opts, logger)

	return NewService(store, gov, resolver.PolicyFromConfig(cfg.Engine), OptionsFromConfig(cfg.Engine), logger, options...), nil
}
