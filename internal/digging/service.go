package digging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"crate/internal/catalog"
	"crate/internal/config"
	"crate/internal/governor"
	"crate/internal/logging"
	"crate/internal/queue"
	"crate/internal/ranker"
	"crate/internal/resolver"
	"crate/internal/services"
)

const (
	// DefaultLimit is the page size used when the caller gives none.
	DefaultLimit = 24
	// MaxLimit bounds a single page.
	MaxLimit = 100

	storeWriteTimeout = 5 * time.Second
)

// ErrCatalogUnavailable marks a page built while the catalog was failing.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Store is the persistence surface the service needs.
type Store interface {
	NewEntry(ctx context.Context, artist, title, catalogText string) (*queue.Entry, error)
	GetByID(ctx context.Context, id int64) (*queue.Entry, error)
	List(ctx context.Context, filter queue.ListFilter) ([]*queue.Entry, error)
	Due(ctx context.Context, now time.Time, limit int, exclude ...int64) ([]*queue.Entry, error)
	Update(ctx context.Context, entry *queue.Entry) error
	Remove(ctx context.Context, id int64) (bool, error)
	Clear(ctx context.Context) (int64, error)
}

// Resolver runs one governed lookup sequence.
type Resolver interface {
	ResolveWithRetry(ctx context.Context, entryID int64, query catalog.Query, carry governor.Carry) governor.Result
}

// Options bounds batch size, concurrency, and waiting.
type Options struct {
	BatchSize      int
	Concurrency    int
	RequestTimeout time.Duration
	ResolveTimeout time.Duration
}

// OptionsFromConfig maps engine configuration onto service options.
func OptionsFromConfig(engine config.Engine) Options {
	return Options{
		BatchSize:      engine.BatchSize,
		Concurrency:    engine.Concurrency,
		RequestTimeout: engine.RequestTimeout(),
		ResolveTimeout: engine.ResolveTimeout(),
	}
}

// Page is one up-next response.
type Page struct {
	Items    []ranker.Item
	Summary  ranker.Summary
	InFlight int
}

// Stats is queue accounting without any lookups.
type Stats struct {
	Summary  ranker.Summary
	InFlight int
}

// Service orchestrates resolution and ranking for the digging queue.
type Service struct {
	store    Store
	resolver Resolver
	policy   resolver.Policy
	opts     Options
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}
	batches  sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithNow substitutes the clock used for due checks and transitions.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the queue service.
func NewService(store Store, lookups Resolver, policy resolver.Policy, opts Options, logger *slog.Logger, options ...Option) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 8 * time.Second
	}
	if opts.ResolveTimeout < opts.RequestTimeout {
		opts.ResolveTimeout = opts.RequestTimeout
	}
	s := &Service{
		store:    store,
		resolver: lookups,
		policy:   policy,
		opts:     opts,
		now:      time.Now,
		logger:   logging.NewComponentLogger(logger, "digging"),
		inFlight: make(map[int64]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// ClampLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// UpNext resolves due entries, then returns the top ranked playable items.
// When a lookup in this call failed with a transport error the page is still
// returned together with an ErrCatalogUnavailable error.
func (s *Service) UpNext(ctx context.Context, limit int) (Page, error) {
	limit = ClampLimit(limit)
	ctx = services.WithOperation(ctx, "up_next")
	logger := logging.WithContext(ctx, s.logger)

	claimed, err := s.claimDue(ctx)
	if err != nil {
		return Page{}, err
	}

	var failures atomic.Int32
	if len(claimed) > 0 {
		done := s.resolveBatch(ctx, claimed, &failures)
		s.await(ctx, done)
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	entries, err := s.store.List(ctx, queue.ListFilter{})
	if err != nil {
		return Page{}, fmt.Errorf("load queue snapshot: %w", err)
	}
	ranking := ranker.Rank(entries)
	page := Page{
		Items:    ranking.Top(limit),
		Summary:  ranking.Summary,
		InFlight: s.inFlightCount(),
	}
	logger.Debug("up next page built",
		logging.Int("limit", limit),
		logging.Int("claimed", len(claimed)),
		logging.Int("items", len(page.Items)),
		logging.Int("in_flight", page.InFlight),
	)
	if n := failures.Load(); n > 0 {
		return page, fmt.Errorf("%w: %d lookup(s) failed", ErrCatalogUnavailable, n)
	}
	return page, nil
}

// claimDue selects due entries and marks them in flight.
func (s *Service) claimDue(ctx context.Context) ([]*queue.Entry, error) {
	due, err := s.store.Due(ctx, s.now(), s.opts.BatchSize, s.inFlightIDs()...)
	if err != nil {
		return nil, fmt.Errorf("select due entries: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	claimed := make([]*queue.Entry, 0, len(due))
	for _, entry := range due {
		if _, busy := s.inFlight[entry.ID]; busy {
			continue
		}
		s.inFlight[entry.ID] = struct{}{}
		claimed = append(claimed, entry)
	}
	return claimed, nil
}

// resolveBatch starts the lookups on a detached context and returns a channel
// closed when every lookup has been written back.
func (s *Service) resolveBatch(ctx context.Context, claimed []*queue.Entry, failures *atomic.Int32) <-chan struct{} {
	resolveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ResolveTimeout)
	done := make(chan struct{})
	s.batches.Add(1)
	go func() {
		defer s.batches.Done()
		defer close(done)
		defer cancel()

		var group errgroup.Group
		group.SetLimit(s.opts.Concurrency)
		for _, entry := range claimed {
			group.Go(func() error {
				if s.resolveOne(resolveCtx, entry) {
					failures.Add(1)
				}
				return nil
			})
		}
		_ = group.Wait()
	}()
	return done
}

// await blocks until the batch finishes, the request timeout elapses, or the
// caller goes away, whichever comes first.
func (s *Service) await(ctx context.Context, done <-chan struct{}) {
	wait := s.opts.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// resolveOne looks up one entry and persists the transition. It reports
// whether the catalog failed with a transport error.
func (s *Service) resolveOne(ctx context.Context, entry *queue.Entry) bool {
	defer s.release(entry.ID)
	ctx = services.WithEntryID(ctx, entry.ID)
	logger := logging.WithContext(ctx, s.logger)

	var result governor.Result
	query := entry.Query()
	if err := query.Validate(); err != nil {
		// Nothing to search on; treat it like a no-match.
		logging.WarnWithContext(logger, "entry has no searchable text", "entry_query_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "edit or remove the entry"),
			logging.String(logging.FieldImpact, "entry stays unresolved"),
		)
		result = governor.Result{Outcome: catalog.Unresolved()}
	} else {
		result = s.resolver.ResolveWithRetry(ctx, entry.ID, query, s.policy.Carry(entry))
	}

	failed := !result.Interrupted && result.Outcome.Kind() == catalog.KindTransportError

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()
	current, err := s.store.GetByID(writeCtx, entry.ID)
	if err != nil {
		logging.ErrorWithContext(logger, "reload entry failed", "entry_reload_failed", logging.Error(err))
		return failed
	}
	if current == nil {
		logger.Info("entry removed during lookup")
		return failed
	}
	transition := s.policy.Resolve(current, result, s.now())
	transition.Apply(current)
	if err := s.store.Update(writeCtx, current); err != nil {
		logging.ErrorWithContext(logger, "persist resolution failed", "entry_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue database"),
		)
		return failed
	}
	logger.Info("entry resolved",
		logging.String("state", string(current.State)),
		logging.Int("attempts", current.Attempts),
		logging.Bool("interrupted", result.Interrupted),
	)
	return failed
}

func (s *Service) release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *Service) inFlightIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.inFlight))
	for id := range s.inFlight {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) inFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Service) isInFlight(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[id]
	return ok
}

// Wait blocks until background lookups finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.batches.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
