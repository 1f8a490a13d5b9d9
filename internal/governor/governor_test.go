package governor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crate/internal/catalog"
	"crate/internal/governor"
	"crate/internal/logging"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

type scriptedSearcher struct {
	mu       sync.Mutex
	outcomes []catalog.Outcome
	calls    int
}

func (s *scriptedSearcher) Lookup(context.Context, catalog.Query) catalog.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.outcomes) == 0 {
		return catalog.Unresolved()
	}
	next := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return next
}

type fakeLimiter struct {
	mu          sync.Mutex
	denials     int
	reserved    int
	released    int
	throttles   []time.Duration
	pausedUntil time.Time
}

func (l *fakeLimiter) Reserve(time.Time) (func(), time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denials > 0 {
		l.denials--
		return nil, time.Second, false
	}
	l.reserved++
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, 0, true
}

func (l *fakeLimiter) Throttle(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.throttles = append(l.throttles, d)
}

func (l *fakeLimiter) PausedUntil() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pausedUntil
}

func rateLimited(n int) []catalog.Outcome {
	out := make([]catalog.Outcome, n)
	for i := range out {
		out[i] = catalog.RateLimited(0)
	}
	return out
}

func newGovernor(searcher catalog.Searcher, limiter governor.Limiter, clock governor.Clock, maxAttempts int) *governor.Governor {
	return governor.New(searcher, limiter, governor.Options{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Jitter:         0.25,
	}, logging.NewNop(), governor.WithClock(clock), governor.WithRand(func() float64 { return 0.5 }))
}

func TestResolveWithRetryExhaustsUnderSustainedRateLimit(t *testing.T) {
	searcher := &scriptedSearcher{outcomes: rateLimited(6)}
	limiter := &fakeLimiter{}
	clock := newFakeClock()

	result := newGovernor(searcher, limiter, clock, 3).ResolveWithRetry(context.Background(), 1, catalog.NewQuery("Artist", "", ""), governor.Carry{})

	if result.Outcome.Kind() != catalog.KindRetriesExhausted {
		t.Fatalf("expected retries exhausted, got %s", result.Outcome)
	}
	if !errors.Is(result.Outcome.Err(), catalog.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", result.Outcome.Err())
	}
	if result.Attempts != 3 || searcher.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got result=%d calls=%d", result.Attempts, searcher.calls)
	}
	if result.Interrupted {
		t.Fatal("exhaustion is not an interruption")
	}
	if len(clock.sleeps) != 2 {
		t.Fatalf("expected 2 backoff sleeps between 3 attempts, got %v", clock.sleeps)
	}
	if clock.sleeps[1] < clock.sleeps[0] {
		t.Fatalf("expected non-decreasing backoff, got %v", clock.sleeps)
	}
	if limiter.reserved != limiter.released {
		t.Fatalf("expected every permit released, reserved=%d released=%d", limiter.reserved, limiter.released)
	}
}

func TestResolveWithRetryReturnsImmediatelyOnTerminalOutcomes(t *testing.T) {
	for name, outcome := range map[string]catalog.Outcome{
		"resolved":   catalog.Resolved(catalog.Match{EntityID: "release/1", ReleaseID: 1, Kind: catalog.MatchRelease}),
		"unresolved": catalog.Unresolved(),
	} {
		t.Run(name, func(t *testing.T) {
			searcher := &scriptedSearcher{outcomes: []catalog.Outcome{outcome}}
			clock := newFakeClock()
			result := newGovernor(searcher, &fakeLimiter{}, clock, 3).ResolveWithRetry(context.Background(), 1, catalog.NewQuery("A", "", ""), governor.Carry{})
			if result.Outcome.Kind() != outcome.Kind() || result.Attempts != 1 {
				t.Fatalf("unexpected result: %+v", result)
			}
			if len(clock.sleeps) != 0 {
				t.Fatalf("expected no sleeps, got %v", clock.sleeps)
			}
		})
	}
}

func TestResolveWithRetryRecoversAfterRateLimit(t *testing.T) {
	searcher := &scriptedSearcher{outcomes: []catalog.Outcome{
		catalog.RateLimited(0),
		catalog.Resolved(catalog.Match{EntityID: "release/2", ReleaseID: 2, Kind: catalog.MatchTrack, Confidence: 0.9}),
	}}
	result := newGovernor(searcher, &fakeLimiter{}, newFakeClock(), 3).ResolveWithRetry(context.Background(), 2, catalog.NewQuery("A", "B", ""), governor.Carry{})
	if result.Outcome.Kind() != catalog.KindResolved || result.Attempts != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.LastDelay <= 0 {
		t.Fatalf("expected last delay recorded, got %v", result.LastDelay)
	}
}

func TestResolveWithRetryRetriesTransportErrorOnce(t *testing.T) {
	failure := catalog.TransportError(errors.New("connection refused"))

	searcher := &scriptedSearcher{outcomes: []catalog.Outcome{failure, catalog.Unresolved()}}
	clock := newFakeClock()
	result := newGovernor(searcher, &fakeLimiter{}, clock, 3).ResolveWithRetry(context.Background(), 3, catalog.NewQuery("A", "", ""), governor.Carry{})
	if result.Outcome.Kind() != catalog.KindUnresolved || result.Attempts != 2 {
		t.Fatalf("expected recovery on immediate retry, got %+v", result)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("transport retry must be immediate, slept %v", clock.sleeps)
	}

	searcher = &scriptedSearcher{outcomes: []catalog.Outcome{failure, failure, failure}}
	result = newGovernor(searcher, &fakeLimiter{}, newFakeClock(), 3).ResolveWithRetry(context.Background(), 3, catalog.NewQuery("A", "", ""), governor.Carry{})
	if result.Outcome.Kind() != catalog.KindTransportError || searcher.calls != 2 {
		t.Fatalf("expected transport error surfaced after one retry, got %+v calls=%d", result, searcher.calls)
	}
}

func TestPermitDenialIsNotAnAttempt(t *testing.T) {
	searcher := &scriptedSearcher{outcomes: []catalog.Outcome{catalog.Unresolved()}}
	limiter := &fakeLimiter{denials: 4}
	clock := newFakeClock()

	result := newGovernor(searcher, limiter, clock, 1).ResolveWithRetry(context.Background(), 4, catalog.NewQuery("A", "", ""), governor.Carry{})
	if result.Attempts != 1 || searcher.calls != 1 {
		t.Fatalf("expected one attempt despite denials, got %+v", result)
	}
	if len(clock.sleeps) != 4 {
		t.Fatalf("expected one local wait per denial, got %v", clock.sleeps)
	}
}

func TestRetryAfterIsForwardedToLimiter(t *testing.T) {
	searcher := &scriptedSearcher{outcomes: []catalog.Outcome{catalog.RateLimited(7 * time.Second), catalog.Unresolved()}}
	limiter := &fakeLimiter{}
	clock := newFakeClock()

	newGovernor(searcher, limiter, clock, 3).ResolveWithRetry(context.Background(), 5, catalog.NewQuery("A", "", ""), governor.Carry{})
	if len(limiter.throttles) != 1 || limiter.throttles[0] != 7*time.Second {
		t.Fatalf("expected retry-after forwarded, got %v", limiter.throttles)
	}
	if clock.sleeps[0] != 7*time.Second {
		t.Fatalf("expected retry-after as backoff floor, got %v", clock.sleeps)
	}
}

func TestResolveWithRetryInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	searcher := &scriptedSearcher{outcomes: rateLimited(6)}
	clock := newFakeClock()
	clock.onSleep = cancel

	result := newGovernor(searcher, &fakeLimiter{}, clock, 5).ResolveWithRetry(ctx, 6, catalog.NewQuery("A", "", ""), governor.Carry{})
	if !result.Interrupted {
		t.Fatalf("expected interrupted result, got %+v", result)
	}
	if result.Outcome.Kind() != catalog.KindRateLimited || result.Attempts != 1 {
		t.Fatalf("expected last observed outcome, got %+v", result)
	}
	if result.LastDelay <= 0 {
		t.Fatalf("expected last delay for rescheduling, got %v", result.LastDelay)
	}
}

func TestResolveWithRetryResumesCarriedAttempts(t *testing.T) {
	searcher := &scriptedSearcher{outcomes: rateLimited(5)}
	clock := newFakeClock()

	result := newGovernor(searcher, &fakeLimiter{}, clock, 3).ResolveWithRetry(context.Background(), 7,
		catalog.NewQuery("A", "", ""), governor.Carry{Attempts: 2, LastDelay: 4 * time.Second})
	if result.Outcome.Kind() != catalog.KindRetriesExhausted {
		t.Fatalf("expected carried attempts to exhaust the ceiling, got %+v", result)
	}
	if searcher.calls != 1 || result.Attempts != 3 {
		t.Fatalf("expected one more call up to the ceiling, got calls=%d attempts=%d", searcher.calls, result.Attempts)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no backoff after the final attempt, got %v", clock.sleeps)
	}
}

func TestResolveWithRetryCarryKeepsDelayNonDecreasing(t *testing.T) {
	searcher := &scriptedSearcher{outcomes: []catalog.Outcome{catalog.RateLimited(0), catalog.Unresolved()}}
	clock := newFakeClock()

	newGovernor(searcher, &fakeLimiter{}, clock, 5).ResolveWithRetry(context.Background(), 8,
		catalog.NewQuery("A", "", ""), governor.Carry{Attempts: 1, LastDelay: 6 * time.Second})
	if len(clock.sleeps) != 1 || clock.sleeps[0] < 6*time.Second {
		t.Fatalf("expected backoff no shorter than the carried delay, got %v", clock.sleeps)
	}
}

func TestInterruptedResultReportsLimiterPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	pause := clock.Now().Add(time.Minute)
	limiter := &fakeLimiter{denials: 10, pausedUntil: pause}
	clock.onSleep = cancel

	result := newGovernor(&scriptedSearcher{}, limiter, clock, 3).ResolveWithRetry(ctx, 9,
		catalog.NewQuery("A", "", ""), governor.Carry{Attempts: 2})
	if !result.Interrupted || !result.NotBefore.Equal(pause) {
		t.Fatalf("expected pause deadline on interrupted result, got %+v", result)
	}
	if result.Attempts != 2 {
		t.Fatalf("expected carried attempts preserved while waiting for a permit, got %d", result.Attempts)
	}
}
