package catalog

import (
	"strconv"
	"strings"

	"crate/internal/textutil"
)

const (
	artistWeight  = 0.45
	titleWeight   = 0.40
	catalogWeight = 0.15

	// trackListedFloor is the title credit for a release the service returned
	// under a track filter: the track is on its tracklist even when the
	// release is named differently.
	trackListedFloor = 0.8
)

// searchResult is one entry of the database search response.
type searchResult struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	CatNo      string `json:"catno"`
	Thumb      string `json:"thumb"`
	CoverImage string `json:"cover_image"`
	URI        string `json:"uri"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// splitTitle separates the "Artist - Release" form the search API uses.
func splitTitle(raw string) (artist, release string) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, " - "); idx > 0 {
		return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+3:])
	}
	return "", raw
}

// score blends artist, title, and catalog-number agreement into [0,1]. Only
// the fields present on the query take part, so an artist-only query can
// still reach full confidence.
func score(query Query, result searchResult) float64 {
	artist, release := splitTitle(result.Title)
	var total, weight float64

	if textutil.Normalize(query.Artist) != "" {
		total += artistWeight * textutil.Similarity(query.Artist, artist)
		weight += artistWeight
	}
	if textutil.Normalize(query.Title) != "" {
		titleScore := textutil.Similarity(query.Title, release)
		if titleScore < trackListedFloor {
			titleScore = trackListedFloor
		}
		total += titleWeight * titleScore
		weight += titleWeight
	}
	if want := textutil.CompactCatalogNumber(query.CatalogNumber); want != "" {
		if want == textutil.CompactCatalogNumber(result.CatNo) {
			total += catalogWeight
		}
		weight += catalogWeight
	}
	if weight == 0 {
		return 0
	}
	return clamp(total / weight)
}

// best returns the highest scored result. Ties keep the earlier result.
func best(query Query, results []searchResult) (searchResult, float64, bool) {
	var (
		winner    searchResult
		bestScore = -1.0
	)
	for _, result := range results {
		if result.ID <= 0 {
			continue
		}
		if s := score(query, result); s > bestScore {
			winner, bestScore = result, s
		}
	}
	if bestScore < 0 {
		return searchResult{}, 0, false
	}
	return winner, bestScore, true
}

func toMatch(query Query, result searchResult, confidence float64) Match {
	artist, release := splitTitle(result.Title)
	kind := MatchRelease
	trackTitle := ""
	if query.IsTrackQuery() {
		kind = MatchTrack
		trackTitle = query.Title
	}
	year, _ := strconv.Atoi(strings.TrimSpace(result.Year))
	thumb := result.Thumb
	if thumb == "" {
		thumb = result.CoverImage
	}
	return Match{
		EntityID:      "release/" + strconv.FormatInt(result.ID, 10),
		ReleaseID:     result.ID,
		Kind:          kind,
		Confidence:    confidence,
		Artist:        artist,
		ReleaseTitle:  release,
		TrackTitle:    trackTitle,
		Year:          year,
		CatalogNumber: result.CatNo,
		Thumb:         thumb,
		URI:           result.URI,
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
