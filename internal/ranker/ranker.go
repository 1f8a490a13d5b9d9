// Package ranker orders resolved queue entries into the playable sequence.
//
// Ranking is pure and single threaded: it derives a fresh ordering from an
// entry snapshot every call. Track-level matches sort ahead of full-release
// fallbacks, then higher confidence, then earlier creation, then lower id, so
// the order is total and repeatable.
package ranker

import (
	"sort"
	"time"

	"crate/internal/catalog"
	"crate/internal/queue"
)

// trackBonus lifts every track match above every release fallback in Score.
const trackBonus = 1.0

// Item is one playable position in the ranking.
type Item struct {
	EntryID    int64
	Position   int
	Artist     string
	Title      string
	Kind       catalog.MatchKind
	Confidence float64
	// Score is the priority key: confidence plus a bonus for track matches.
	Score     float64
	Match     catalog.Match
	CreatedAt time.Time
}

// Summary accounts for every entry, playable or not.
type Summary struct {
	Total      int `json:"total"`
	Playable   int `json:"playable"`
	Track      int `json:"track"`
	Release    int `json:"release"`
	Unresolved int `json:"unresolved"`
	Retrying   int `json:"retrying"`
	Errored    int `json:"errored"`
	Pending    int `json:"pending"`
}

// Ranking is the ordered playable items plus queue accounting.
type Ranking struct {
	Items   []Item
	Summary Summary
}

// Rank de-duplicates entries by id, counts them, and orders the playable ones.
func Rank(entries []*queue.Entry) Ranking {
	unique := dedupe(entries)

	var ranking Ranking
	ranking.Summary.Total = len(unique)
	items := make([]Item, 0, len(unique))
	for _, entry := range unique {
		item, ok := toItem(entry)
		if !ok {
			countUnplayable(&ranking.Summary, entry.State)
			continue
		}
		if item.Kind == catalog.MatchTrack {
			ranking.Summary.Track++
		} else {
			ranking.Summary.Release++
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	for i := range items {
		items[i].Position = i + 1
	}
	ranking.Summary.Playable = len(items)
	ranking.Items = items
	return ranking
}

// Top returns at most limit items. A non-positive limit returns none.
func (r Ranking) Top(limit int) []Item {
	if limit <= 0 {
		return []Item{}
	}
	if limit > len(r.Items) {
		limit = len(r.Items)
	}
	out := make([]Item, limit)
	copy(out, r.Items[:limit])
	return out
}

func less(a, b Item) bool {
	if ak, bk := kindRank(a.Kind), kindRank(b.Kind); ak != bk {
		return ak < bk
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.EntryID < b.EntryID
}

func kindRank(kind catalog.MatchKind) int {
	if kind == catalog.MatchTrack {
		return 0
	}
	return 1
}

// dedupe keeps one candidate per id: playable beats unplayable, then the
// higher confidence wins.
func dedupe(entries []*queue.Entry) []*queue.Entry {
	index := make(map[int64]int, len(entries))
	out := make([]*queue.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		pos, seen := index[entry.ID]
		if !seen {
			index[entry.ID] = len(out)
			out = append(out, entry)
			continue
		}
		if better(entry, out[pos]) {
			out[pos] = entry
		}
	}
	return out
}

func better(candidate, current *queue.Entry) bool {
	cPlayable, curPlayable := playable(candidate), playable(current)
	if cPlayable != curPlayable {
		return cPlayable
	}
	if !cPlayable {
		return false
	}
	return candidate.Match.Confidence > current.Match.Confidence
}

func playable(entry *queue.Entry) bool {
	return entry.State.IsMatched() && entry.Match != nil
}

func toItem(entry *queue.Entry) (Item, bool) {
	if !playable(entry) {
		return Item{}, false
	}
	kind := catalog.MatchRelease
	if entry.State == queue.StateMatchedTrack {
		kind = catalog.MatchTrack
	}
	score := entry.Match.Confidence
	if kind == catalog.MatchTrack {
		score += trackBonus
	}
	return Item{
		EntryID:    entry.ID,
		Artist:     entry.DisplayArtist(),
		Title:      entry.DisplayTitle(),
		Kind:       kind,
		Confidence: entry.Match.Confidence,
		Score:      score,
		Match:      *entry.Match,
		CreatedAt:  entry.CreatedAt,
	}, true
}

func countUnplayable(summary *Summary, state queue.State) {
	switch state {
	case queue.StatePending:
		summary.Pending++
	case queue.StateRetryScheduled:
		summary.Retrying++
	case queue.StateError:
		summary.Errored++
	default:
		summary.Unresolved++
	}
}
