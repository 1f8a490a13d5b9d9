package queue

import (
	"time"

	"crate/internal/catalog"
)

// State is the single current resolution state of an entry.
type State string

const (
	StatePending        State = "pending"
	StateMatchedTrack   State = "matched_track"
	StateMatchedRelease State = "matched_release"
	StateUnresolved     State = "unresolved"
	StateRetryScheduled State = "retry_scheduled"
	StateError          State = "error"
)

var allStates = []State{
	StatePending,
	StateMatchedTrack,
	StateMatchedRelease,
	StateUnresolved,
	StateRetryScheduled,
	StateError,
}

// dueStates may be looked up again once their next attempt time passes.
var dueStates = []State{
	StatePending,
	StateRetryScheduled,
	StateError,
	StateUnresolved,
}

// AllStates returns every state in display order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState validates raw state text.
func ParseState(raw string) (State, bool) {
	for _, state := range allStates {
		if string(state) == raw {
			return state, true
		}
	}
	return "", false
}

// IsMatched reports whether entries in this state are playable.
func (s State) IsMatched() bool {
	return s == StateMatchedTrack || s == StateMatchedRelease
}

// IsRetryable reports whether the state is eligible for a future lookup.
func (s State) IsRetryable() bool {
	for _, state := range dueStates {
		if s == state {
			return true
		}
	}
	return false
}

// Entry is one digging-queue item and its resolution bookkeeping.
type Entry struct {
	ID            int64
	Artist        string
	Title         string
	CatalogText   string
	State         State
	Attempts      int
	Exhaustions   int
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	Match         *catalog.Match
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Query returns the catalog query for the entry's raw fields.
func (e *Entry) Query() catalog.Query {
	return catalog.NewQuery(e.Artist, e.Title, e.CatalogText)
}

// IsDue reports whether the entry may be looked up at now.
func (e *Entry) IsDue(now time.Time) bool {
	if e == nil || !e.State.IsRetryable() {
		return false
	}
	return e.NextAttemptAt == nil || !now.Before(*e.NextAttemptAt)
}

// DisplayArtist prefers the matched artist over the raw text.
func (e *Entry) DisplayArtist() string {
	if e.Match != nil && e.Match.Artist != "" {
		return e.Match.Artist
	}
	return e.Artist
}

// DisplayTitle prefers the matched track or release title over the raw text.
func (e *Entry) DisplayTitle() string {
	if e.Match != nil {
		if e.Match.Kind == catalog.MatchTrack && e.Match.TrackTitle != "" {
			return e.Match.TrackTitle
		}
		if e.Match.ReleaseTitle != "" {
			return e.Match.ReleaseTitle
		}
	}
	if e.Title != "" {
		return e.Title
	}
	return e.CatalogText
}
