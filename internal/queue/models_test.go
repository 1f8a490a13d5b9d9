package queue

import (
	"testing"
	"time"

	"crate/internal/catalog"
)

func TestEntryIsDue(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Second)
	past := now.Add(-time.Second)

	cases := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"pending unscheduled", Entry{State: StatePending}, true},
		{"retry in window", Entry{State: StateRetryScheduled, NextAttemptAt: &future}, false},
		{"retry elapsed", Entry{State: StateRetryScheduled, NextAttemptAt: &past}, true},
		{"retry exactly now", Entry{State: StateRetryScheduled, NextAttemptAt: &now}, true},
		{"matched never due", Entry{State: StateMatchedTrack}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entry.IsDue(now); got != tc.want {
				t.Fatalf("IsDue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEntryDisplayFields(t *testing.T) {
	entry := &Entry{Artist: "raw artist", Title: "raw title", Match: &catalog.Match{Kind: catalog.MatchRelease, Artist: "Matched", ReleaseTitle: "LP"}}
	if entry.DisplayArtist() != "Matched" || entry.DisplayTitle() != "LP" {
		t.Fatalf("unexpected display fields: %q %q", entry.DisplayArtist(), entry.DisplayTitle())
	}
	if (&Entry{CatalogText: "WARP 1"}).DisplayTitle() != "WARP 1" {
		t.Fatal("expected catalog text fallback for display title")
	}
}

func TestParseState(t *testing.T) {
	for _, state := range AllStates() {
		if parsed, ok := ParseState(string(state)); !ok || parsed != state {
			t.Fatalf("round trip failed for %s", state)
		}
	}
	if _, ok := ParseState("bogus"); ok {
		t.Fatal("expected unknown state rejected")
	}
}
