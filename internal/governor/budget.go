package governor

import (
	"errors"
	"time"

	"crate/internal/catalog"
)

// StepKind is the action the loop takes after an observed outcome.
type StepKind int

const (
	StepDone StepKind = iota
	StepBackoff
	StepRetryNow
)

func (k StepKind) String() string {
	switch k {
	case StepDone:
		return "done"
	case StepBackoff:
		return "backoff"
	case StepRetryNow:
		return "retry_now"
	default:
		return "unknown"
	}
}

// Step is a state machine decision. Outcome is only meaningful for StepDone
// and Delay only for StepBackoff.
type Step struct {
	Kind    StepKind
	Delay   time.Duration
	Outcome catalog.Outcome
}

// Budget tracks one lookup sequence: attempts spent, the last backoff delay,
// and when the next attempt may start.
type Budget struct {
	maxAttempts int
	backoff     Backoff

	attempts         int
	lastDelay        time.Duration
	nextAllowed      time.Time
	transportRetried bool
	last             catalog.Outcome
	observed         bool
}

// NewBudget creates a budget allowing maxAttempts catalog calls.
func NewBudget(maxAttempts int, backoff Backoff) *Budget {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Budget{maxAttempts: maxAttempts, backoff: backoff}
}

// Resume continues a sequence an earlier run left unfinished: attempts
// already spent count against the ceiling and delays never drop below the
// last one. At least one attempt always remains.
func (b *Budget) Resume(attempts int, lastDelay time.Duration) {
	if attempts > b.maxAttempts-1 {
		attempts = b.maxAttempts - 1
	}
	if attempts > 0 {
		b.attempts = attempts
	}
	if b.backoff.Max > 0 && lastDelay > b.backoff.Max {
		lastDelay = b.backoff.Max
	}
	if lastDelay > 0 {
		b.lastDelay = lastDelay
	}
}

// Observe records one catalog call and decides the next step.
func (b *Budget) Observe(outcome catalog.Outcome, now time.Time) Step {
	b.attempts++
	b.last = outcome
	b.observed = true

	switch outcome.Kind() {
	case catalog.KindResolved, catalog.KindUnresolved, catalog.KindRetriesExhausted:
		return b.done(outcome)
	case catalog.KindRateLimited:
		if b.attempts >= b.maxAttempts {
			return b.done(catalog.RetriesExhausted())
		}
		delay := b.backoff.Delay(b.attempts)
		if hint := outcome.RetryAfter(); hint > delay {
			delay = hint
		}
		if delay < b.lastDelay {
			delay = b.lastDelay
		}
		if b.backoff.Max > 0 && delay > b.backoff.Max {
			delay = b.backoff.Max
		}
		b.lastDelay = delay
		b.nextAllowed = now.Add(delay)
		return Step{Kind: StepBackoff, Delay: delay}
	case catalog.KindTransportError:
		if !b.transportRetried && b.attempts < b.maxAttempts {
			b.transportRetried = true
			b.nextAllowed = now
			return Step{Kind: StepRetryNow}
		}
		return b.done(outcome)
	default:
		return b.done(catalog.TransportError(errors.New("unknown catalog outcome")))
	}
}

func (b *Budget) done(outcome catalog.Outcome) Step {
	b.last = outcome
	return Step{Kind: StepDone, Outcome: outcome}
}

// Attempts returns the catalog calls spent so far.
func (b *Budget) Attempts() int { return b.attempts }

// MaxAttempts returns the ceiling.
func (b *Budget) MaxAttempts() int { return b.maxAttempts }

// LastDelay returns the most recent backoff delay.
func (b *Budget) LastDelay() time.Duration { return b.lastDelay }

// NextAllowed returns when the next attempt may start.
func (b *Budget) NextAllowed() time.Time { return b.nextAllowed }

// Last returns the most recent outcome. ok is false before any observation.
func (b *Budget) Last() (catalog.Outcome, bool) { return b.last, b.observed }
