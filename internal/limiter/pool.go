// Package limiter provides the permit pool every catalog call draws from.
package limiter

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// busyWait is the suggested wait when every concurrency slot is taken.
const busyWait = 50 * time.Millisecond

// Pool combines a request-rate ceiling, a concurrency ceiling, and a
// service-imposed pause. Acquisition never blocks. It is safe for
// concurrent use.
type Pool struct {
	rate  *rate.Limiter
	slots *semaphore.Weighted
	now   func() time.Time

	mu          sync.Mutex
	pausedUntil time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithNow overrides the clock used by Throttle.
func WithNow(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a pool allowing requestsPerMinute calls (bursting to burst) and
// at most concurrency calls in flight. Non-positive rates disable the rate
// ceiling.
func New(requestsPerMinute, burst, concurrency int, opts ...Option) *Pool {
	if burst <= 0 {
		burst = 1
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
	}
	p := &Pool{
		rate:  rate.NewLimiter(limit, burst),
		slots: semaphore.NewWeighted(int64(concurrency)),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reserve tries to take one permit at now. On success the caller must call
// release once the catalog call returns. On failure wait estimates how long
// until a permit may be available.
func (p *Pool) Reserve(now time.Time) (release func(), wait time.Duration, ok bool) {
	if pause := p.pauseRemaining(now); pause > 0 {
		return nil, pause, false
	}
	if !p.slots.TryAcquire(1) {
		return nil, busyWait, false
	}
	reservation := p.rate.ReserveN(now, 1)
	if !reservation.OK() {
		p.slots.Release(1)
		return nil, busyWait, false
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		p.slots.Release(1)
		return nil, delay, false
	}
	var once sync.Once
	return func() { once.Do(func() { p.slots.Release(1) }) }, 0, true
}

// Throttle stops handing out permits for d. Overlapping pauses keep the
// later deadline.
func (p *Pool) Throttle(d time.Duration) {
	if d <= 0 {
		return
	}
	until := p.now().Add(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	if until.After(p.pausedUntil) {
		p.pausedUntil = until
	}
}

// PausedUntil reports the current pause deadline, zero when not paused.
func (p *Pool) PausedUntil() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pausedUntil
}

func (p *Pool) pauseRemaining(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pausedUntil.IsZero() || !now.Before(p.pausedUntil) {
		return 0
	}
	return p.pausedUntil.Sub(now)
}
