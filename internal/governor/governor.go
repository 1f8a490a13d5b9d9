package governor

import (
	"context"
	"log/slog"
	"time"

	"crate/internal/catalog"
	"crate/internal/logging"
	"crate/internal/services"
)

// Limiter is the shared permit pool. Reserve must not block.
type Limiter interface {
	Reserve(now time.Time) (release func(), wait time.Duration, ok bool)
	Throttle(d time.Duration)
	PausedUntil() time.Time
}

// Options configures the retry ceiling and backoff shape.
type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64
}

// DefaultOptions mirrors the engine configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Jitter:         0.25,
	}
}

// Carry is the part of an unfinished sequence a later run resumes from.
type Carry struct {
	Attempts  int
	LastDelay time.Duration
}

// Result is the terminal outcome of one lookup sequence. Outcome is never
// RateLimited unless Interrupted is set. Attempts includes carried ones.
type Result struct {
	Outcome     catalog.Outcome
	Attempts    int
	LastDelay   time.Duration
	Interrupted bool
	// NotBefore is the limiter pause deadline seen at interruption, zero
	// when the limiter was not paused.
	NotBefore time.Time
}

// Governor runs bounded retry sequences against a catalog searcher.
type Governor struct {
	searcher catalog.Searcher
	limiter  Limiter
	clock    Clock
	opts     Options
	random   func() float64
	logger   *slog.Logger
}

// Option customises a Governor.
type Option func(*Governor)

// WithClock substitutes the clock.
func WithClock(clock Clock) Option {
	return func(g *Governor) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithRand substitutes the jitter source.
func WithRand(random func() float64) Option {
	return func(g *Governor) {
		g.random = random
	}
}

// New constructs a governor.
func New(searcher catalog.Searcher, limiter Limiter, opts Options, logger *slog.Logger, options ...Option) *Governor {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	g := &Governor{
		searcher: searcher,
		limiter:  limiter,
		clock:    SystemClock{},
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "governor"),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// MaxAttempts returns the configured attempt ceiling.
func (g *Governor) MaxAttempts() int { return g.opts.MaxAttempts }

// ResolveWithRetry runs one lookup sequence for an entry, resuming from
// carry. When ctx ends mid-sequence the last observed outcome is returned
// with Interrupted set.
func (g *Governor) ResolveWithRetry(ctx context.Context, entryID int64, query catalog.Query, carry Carry) Result {
	ctx = services.WithEntryID(ctx, entryID)
	logger := logging.WithContext(ctx, g.logger)
	budget := NewBudget(g.opts.MaxAttempts, Backoff{
		Initial: g.opts.InitialBackoff,
		Max:     g.opts.MaxBackoff,
		Jitter:  g.opts.Jitter,
		Rand:    g.random,
	})
	budget.Resume(carry.Attempts, carry.LastDelay)

	for {
		release, err := g.acquire(ctx)
		if err != nil {
			return g.interrupted(logger, budget, err)
		}
		outcome := g.searcher.Lookup(ctx, query)
		release()

		if outcome.Kind() == catalog.KindTransportError && ctx.Err() != nil {
			return g.interrupted(logger, budget, ctx.Err())
		}
		if outcome.Kind() == catalog.KindRateLimited && outcome.RetryAfter() > 0 && g.limiter != nil {
			g.limiter.Throttle(outcome.RetryAfter())
		}

		step := budget.Observe(outcome, g.clock.Now())
		switch step.Kind {
		case StepDone:
			g.logDone(logger, budget, step.Outcome)
			return Result{
				Outcome:   step.Outcome,
				Attempts:  budget.Attempts(),
				LastDelay: budget.LastDelay(),
			}
		case StepRetryNow:
			logging.WarnWithContext(logger, "catalog transport error, retrying once",
				"catalog_transport_retry",
				logging.Int("attempt", budget.Attempts()),
				logging.Error(outcome.Err()),
				logging.String(logging.FieldErrorHint, "check catalog connectivity"),
				logging.String(logging.FieldImpact, "entry lookup delayed"),
			)
		case StepBackoff:
			logging.WarnWithContext(logger, "catalog rate limited, backing off",
				"catalog_rate_limited",
				logging.Duration("backoff", step.Delay),
				logging.Duration("retry_after", outcome.RetryAfter()),
				logging.Int("attempt", budget.Attempts()),
				logging.Int("max_attempts", budget.MaxAttempts()),
				logging.String(logging.FieldErrorHint, "lower catalog.requests_per_minute if this persists"),
				logging.String(logging.FieldImpact, "entry lookup delayed"),
			)
			if err := g.clock.Sleep(ctx, step.Delay); err != nil {
				return g.interrupted(logger, budget, err)
			}
		}
	}
}

// acquire waits locally until the limiter hands out a permit.
func (g *Governor) acquire(ctx context.Context) (func(), error) {
	if g.limiter == nil {
		return func() {}, ctx.Err()
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		release, wait, ok := g.limiter.Reserve(g.clock.Now())
		if ok {
			return release, nil
		}
		if err := g.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (g *Governor) interrupted(logger *slog.Logger, budget *Budget, cause error) Result {
	outcome, ok := budget.Last()
	if !ok {
		outcome = catalog.TransportError(cause)
	}
	var notBefore time.Time
	if g.limiter != nil {
		notBefore = g.limiter.PausedUntil()
	}
	logger.Info("lookup sequence interrupted",
		logging.Int("attempts", budget.Attempts()),
		logging.Duration("last_delay", budget.LastDelay()),
		logging.String("last_outcome", outcome.Kind().String()),
		logging.Error(cause),
	)
	return Result{
		Outcome:     outcome,
		Attempts:    budget.Attempts(),
		LastDelay:   budget.LastDelay(),
		Interrupted: true,
		NotBefore:   notBefore,
	}
}

func (g *Governor) logDone(logger *slog.Logger, budget *Budget, outcome catalog.Outcome) {
	attrs := []logging.Attr{
		logging.String("outcome", outcome.Kind().String()),
		logging.Int("attempts", budget.Attempts()),
	}
	switch outcome.Kind() {
	case catalog.KindRetriesExhausted:
		logging.WarnWithContext(logger, "catalog retries exhausted",
			"catalog_retries_exhausted",
			append(attrs,
				logging.Duration("last_delay", budget.LastDelay()),
				logging.String(logging.FieldErrorHint, "entry will be retried after its cooldown"),
				logging.String(logging.FieldImpact, "entry stays queued without a match"),
			)...,
		)
	case catalog.KindTransportError:
		logging.ErrorWithContext(logger, "catalog lookup failed",
			"catalog_transport_error",
			append(attrs,
				logging.Error(outcome.Err()),
				logging.String(logging.FieldErrorHint, "check catalog.base_url and network connectivity"),
			)...,
		)
	default:
		logger.Debug("catalog lookup finished", logging.Args(attrs...)...)
	}
}
