package resolver_test

import (
	"errors"
	"testing"
	"time"

	"crate/internal/catalog"
	"crate/internal/governor"
	"crate/internal/queue"
	"crate/internal/resolver"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func testPolicy() resolver.Policy {
	return resolver.Policy{
		TrackThreshold:     0.75,
		RetryCooldown:      5 * time.Minute,
		MaxRetryCooldown:   30 * time.Minute,
		UnresolvedRecheck:  24 * time.Hour,
		ErrorRetryInterval: time.Minute,
		MaxAttempts:        3,
	}
}

func resolved(kind catalog.MatchKind, releaseID int64, confidence float64) governor.Result {
	return governor.Result{
		Outcome:  catalog.Resolved(catalog.Match{EntityID: "release/x", ReleaseID: releaseID, Kind: kind, Confidence: confidence, TrackTitle: "T"}),
		Attempts: 1,
	}
}

func TestResolveClassifiesMatches(t *testing.T) {
	cases := []struct {
		name   string
		result governor.Result
		state  queue.State
		kind   catalog.MatchKind
	}{
		{"confident track", resolved(catalog.MatchTrack, 1, 0.9), queue.StateMatchedTrack, catalog.MatchTrack},
		{"track at threshold", resolved(catalog.MatchTrack, 1, 0.75), queue.StateMatchedTrack, catalog.MatchTrack},
		{"weak track falls back to release", resolved(catalog.MatchTrack, 1, 0.4), queue.StateMatchedRelease, catalog.MatchRelease},
		{"release hit", resolved(catalog.MatchRelease, 2, 0.2), queue.StateMatchedRelease, catalog.MatchRelease},
		{"weak track without release", resolved(catalog.MatchTrack, 0, 0.4), queue.StateUnresolved, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := testPolicy().Resolve(&queue.Entry{Exhaustions: 2, LastError: "old"}, tc.result, now)
			if tr.State != tc.state {
				t.Fatalf("state = %s, want %s", tr.State, tc.state)
			}
			if tc.kind == "" {
				if tr.Match != nil {
					t.Fatalf("expected no match, got %+v", tr.Match)
				}
				if tr.NextAttemptAt == nil || !tr.NextAttemptAt.Equal(now.Add(24*time.Hour)) {
					t.Fatalf("expected recheck schedule, got %v", tr.NextAttemptAt)
				}
				return
			}
			if tr.Match == nil || tr.Match.Kind != tc.kind {
				t.Fatalf("unexpected match: %+v", tr.Match)
			}
			if tc.kind == catalog.MatchRelease && tr.Match.TrackTitle != "" {
				t.Fatalf("release fallback must drop the track title: %+v", tr.Match)
			}
			if tr.NextAttemptAt != nil || tr.Exhaustions != 0 || tr.LastError != "" {
				t.Fatalf("matched entries clear retry bookkeeping: %+v", tr)
			}
		})
	}
}

func TestResolveUnresolvedSchedulesRecheck(t *testing.T) {
	tr := testPolicy().Resolve(&queue.Entry{}, governor.Result{Outcome: catalog.Unresolved(), Attempts: 1}, now)
	if tr.State != queue.StateUnresolved || tr.NextAttemptAt == nil || !tr.NextAttemptAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("unexpected transition: %+v", tr)
	}
}

func TestResolveRetriesExhaustedBacksOffPerRound(t *testing.T) {
	policy := testPolicy()
	entry := &queue.Entry{State: queue.StatePending}
	want := []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute, 30 * time.Minute, 30 * time.Minute}
	for round, cooldown := range want {
		tr := policy.Resolve(entry, governor.Result{Outcome: catalog.RetriesExhausted(), Attempts: 3}, now)
		if tr.State != queue.StateRetryScheduled {
			t.Fatalf("round %d: expected retry_scheduled, got %s", round+1, tr.State)
		}
		if tr.Exhaustions != round+1 {
			t.Fatalf("round %d: exhaustions = %d", round+1, tr.Exhaustions)
		}
		if !tr.NextAttemptAt.Equal(now.Add(cooldown)) {
			t.Fatalf("round %d: next attempt %v, want +%v", round+1, tr.NextAttemptAt, cooldown)
		}
		if tr.LastError != catalog.ErrRetriesExhausted.Error() {
			t.Fatalf("round %d: unexpected last error %q", round+1, tr.LastError)
		}
		tr.Apply(entry)
	}
	if entry.Attempts != 3 || entry.LastAttemptAt == nil || !entry.LastAttemptAt.Equal(now) {
		t.Fatalf("apply did not record attempt bookkeeping: %+v", entry)
	}
}

func TestResolveTransportError(t *testing.T) {
	result := governor.Result{Outcome: catalog.TransportError(errors.New("dial tcp: refused")), Attempts: 2}
	tr := testPolicy().Resolve(&queue.Entry{Exhaustions: 1}, result, now)
	if tr.State != queue.StateError {
		t.Fatalf("expected error state, got %s", tr.State)
	}
	if !tr.NextAttemptAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected retry time %v", tr.NextAttemptAt)
	}
	if tr.Exhaustions != 1 {
		t.Fatal("transport errors must not reset the exhaustion streak")
	}
	if tr.LastError == "" {
		t.Fatal("expected transport detail recorded")
	}
}

func TestResolveInterruptedReschedulesAtLastDelay(t *testing.T) {
	result := governor.Result{Outcome: catalog.RateLimited(0), Attempts: 2, LastDelay: 4 * time.Second, Interrupted: true}
	tr := testPolicy().Resolve(&queue.Entry{Exhaustions: 1}, result, now)
	if tr.State != queue.StateRetryScheduled || !tr.NextAttemptAt.Equal(now.Add(4*time.Second)) {
		t.Fatalf("unexpected interrupted transition: %+v", tr)
	}
	if tr.Exhaustions != 1 {
		t.Fatal("an interrupted sequence is never counted as exhausted")
	}
}

func TestResolveInterruptedWaitsOutLimiterPause(t *testing.T) {
	pause := now.Add(time.Minute)
	result := governor.Result{
		Outcome:     catalog.RateLimited(time.Minute),
		Attempts:    2,
		LastDelay:   30 * time.Second,
		Interrupted: true,
		NotBefore:   pause,
	}
	tr := testPolicy().Resolve(&queue.Entry{}, result, now)
	if tr.State != queue.StateRetryScheduled || tr.Attempts != 2 {
		t.Fatalf("unexpected transition: %+v", tr)
	}
	if tr.NextAttemptAt == nil || !tr.NextAttemptAt.Equal(pause) {
		t.Fatalf("expected next attempt at the pause deadline, got %v", tr.NextAttemptAt)
	}
}

func TestCarryResumesOnlyUnfinishedSequences(t *testing.T) {
	last := now.Add(-10 * time.Second)
	next := now.Add(20 * time.Second)
	cases := []struct {
		name  string
		entry *queue.Entry
		want  governor.Carry
	}{
		{"nil entry", nil, governor.Carry{}},
		{"pending", &queue.Entry{State: queue.StatePending, Attempts: 2}, governor.Carry{}},
		{"mid sequence", &queue.Entry{State: queue.StateRetryScheduled, Attempts: 2, LastAttemptAt: &last, NextAttemptAt: &next},
			governor.Carry{Attempts: 2, LastDelay: 30 * time.Second}},
		{"exhausted", &queue.Entry{State: queue.StateRetryScheduled, Attempts: 3}, governor.Carry{}},
		{"error state", &queue.Entry{State: queue.StateError, Attempts: 1}, governor.Carry{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := testPolicy().Carry(tc.entry); got != tc.want {
				t.Fatalf("Carry = %+v, want %+v", got, tc.want)
			}
		})
	}
}
