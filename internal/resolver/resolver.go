// Package resolver folds governed lookup results into queue entry state.
//
// Resolution is a pure function of the entry, the lookup result, and the
// current time, so the service can apply it from whichever goroutine ran the
// lookup without further coordination.
package resolver

import (
	"time"

	"crate/internal/catalog"
	"crate/internal/config"
	"crate/internal/governor"
	"crate/internal/queue"
)

// Policy holds the classification threshold and rescheduling intervals.
type Policy struct {
	TrackThreshold     float64
	RetryCooldown      time.Duration
	MaxRetryCooldown   time.Duration
	UnresolvedRecheck  time.Duration
	ErrorRetryInterval time.Duration
	// MaxAttempts is the governor's per-sequence ceiling. An entry holding
	// fewer attempts than this in retry_scheduled is mid-sequence.
	MaxAttempts int
}

// PolicyFromConfig builds a policy from engine configuration.
func PolicyFromConfig(engine config.Engine) Policy {
	return Policy{
		TrackThreshold:     engine.TrackThreshold,
		RetryCooldown:      engine.RetryCooldown(),
		MaxRetryCooldown:   engine.MaxRetryCooldown(),
		UnresolvedRecheck:  engine.UnresolvedRecheck(),
		ErrorRetryInterval: engine.ErrorRetryInterval(),
		MaxAttempts:        engine.MaxAttempts,
	}
}

// Carry returns what an interrupted sequence left on entry, so the next
// lookup resumes it instead of starting over. Exhausted entries start fresh
// after their cooldown.
func (p Policy) Carry(entry *queue.Entry) governor.Carry {
	if entry == nil || entry.State != queue.StateRetryScheduled || entry.Attempts <= 0 {
		return governor.Carry{}
	}
	if p.MaxAttempts > 0 && entry.Attempts >= p.MaxAttempts {
		return governor.Carry{}
	}
	carry := governor.Carry{Attempts: entry.Attempts}
	if entry.LastAttemptAt != nil && entry.NextAttemptAt != nil {
		if d := entry.NextAttemptAt.Sub(*entry.LastAttemptAt); d > 0 {
			carry.LastDelay = d
		}
	}
	return carry
}

// Transition is the complete set of resolution fields an entry takes on.
type Transition struct {
	State         queue.State
	Match         *catalog.Match
	Attempts      int
	Exhaustions   int
	LastAttemptAt time.Time
	NextAttemptAt *time.Time
	LastError     string
}

// Apply writes the transition onto entry.
func (t Transition) Apply(entry *queue.Entry) {
	if entry == nil {
		return
	}
	attempted := t.LastAttemptAt
	entry.State = t.State
	entry.Match = t.Match
	entry.Attempts = t.Attempts
	entry.Exhaustions = t.Exhaustions
	entry.LastAttemptAt = &attempted
	entry.NextAttemptAt = t.NextAttemptAt
	entry.LastError = t.LastError
}

// Classify decides how a resolved match lands in the queue. Track hits below
// the threshold degrade to a full-release fallback.
func (p Policy) Classify(match catalog.Match) (queue.State, *catalog.Match) {
	if match.Kind == catalog.MatchTrack && match.Confidence >= p.TrackThreshold {
		m := match
		return queue.StateMatchedTrack, &m
	}
	if match.ReleaseID > 0 {
		m := match
		m.Kind = catalog.MatchRelease
		m.TrackTitle = ""
		return queue.StateMatchedRelease, &m
	}
	return queue.StateUnresolved, nil
}

// Resolve computes the transition for entry given a governed result.
func (p Policy) Resolve(entry *queue.Entry, result governor.Result, now time.Time) Transition {
	t := Transition{
		Attempts:      result.Attempts,
		LastAttemptAt: now,
	}
	if entry != nil {
		t.Exhaustions = entry.Exhaustions
		t.LastError = entry.LastError
	}

	if result.Interrupted || result.Outcome.Kind() == catalog.KindRateLimited {
		t.State = queue.StateRetryScheduled
		next := now.Add(result.LastDelay)
		if result.NotBefore.After(next) {
			next = result.NotBefore
		}
		t.NextAttemptAt = &next
		return t
	}

	switch result.Outcome.Kind() {
	case catalog.KindResolved:
		match, _ := result.Outcome.Match()
		t.State, t.Match = p.Classify(match)
		t.Exhaustions = 0
		t.LastError = ""
		if t.State == queue.StateUnresolved {
			t.NextAttemptAt = at(now, p.UnresolvedRecheck)
		}
	case catalog.KindUnresolved:
		t.State = queue.StateUnresolved
		t.Exhaustions = 0
		t.LastError = ""
		t.NextAttemptAt = at(now, p.UnresolvedRecheck)
	case catalog.KindRetriesExhausted:
		t.State = queue.StateRetryScheduled
		t.Exhaustions++
		t.LastError = catalog.ErrRetriesExhausted.Error()
		t.NextAttemptAt = at(now, p.Cooldown(t.Exhaustions))
	case catalog.KindTransportError:
		t.State = queue.StateError
		t.LastError = errorText(result.Outcome.Err())
		t.NextAttemptAt = at(now, p.ErrorRetryInterval)
	default:
		t.State = queue.StateError
		t.LastError = "unknown lookup outcome"
		t.NextAttemptAt = at(now, p.ErrorRetryInterval)
	}
	return t
}

// Cooldown returns the delay after the nth consecutive exhaustion: the base
// cooldown doubled per round, capped at the maximum.
func (p Policy) Cooldown(exhaustions int) time.Duration {
	if exhaustions < 1 {
		exhaustions = 1
	}
	cooldown := p.RetryCooldown
	for i := 1; i < exhaustions; i++ {
		cooldown *= 2
		if p.MaxRetryCooldown > 0 && cooldown >= p.MaxRetryCooldown {
			return p.MaxRetryCooldown
		}
	}
	if p.MaxRetryCooldown > 0 && cooldown > p.MaxRetryCooldown {
		return p.MaxRetryCooldown
	}
	return cooldown
}

func at(now time.Time, d time.Duration) *time.Time {
	next := now.Add(d)
	return &next
}

func errorText(err error) string {
	if err == nil {
		return catalog.ErrTransport.Error()
	}
	return err.Error()
}
