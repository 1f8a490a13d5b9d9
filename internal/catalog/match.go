package catalog

import (
	"fmt"
	"strings"

	"crate/internal/services"
	"crate/internal/textutil"
)

// MatchKind distinguishes track-level hits from full-release fallbacks.
type MatchKind string

const (
	MatchTrack   MatchKind = "track"
	MatchRelease MatchKind = "release"
)

// Match is an immutable catalog hit plus the fields needed to display it.
type Match struct {
	EntityID      string    `json:"entity_id"`
	ReleaseID     int64     `json:"release_id"`
	Kind          MatchKind `json:"kind"`
	Confidence    float64   `json:"confidence"`
	Artist        string    `json:"artist,omitempty"`
	ReleaseTitle  string    `json:"release_title,omitempty"`
	TrackTitle    string    `json:"track_title,omitempty"`
	Year          int       `json:"year,omitempty"`
	CatalogNumber string    `json:"catalog_number,omitempty"`
	Thumb         string    `json:"thumb,omitempty"`
	URI           string    `json:"uri,omitempty"`
}

// Query carries the identifying text of one lookup.
type Query struct {
	Artist        string
	Title         string
	CatalogNumber string
}

// NewQuery trims and collapses whitespace in the raw entry fields.
func NewQuery(artist, title, catalogNumber string) Query {
	return Query{
		Artist:        strings.Join(strings.Fields(artist), " "),
		Title:         strings.Join(strings.Fields(title), " "),
		CatalogNumber: strings.Join(strings.Fields(catalogNumber), " "),
	}
}

// Validate rejects queries with no identifying text.
func (q Query) Validate() error {
	if textutil.Normalize(q.Artist) == "" && textutil.Normalize(q.Title) == "" && textutil.CompactCatalogNumber(q.CatalogNumber) == "" {
		return services.Wrap(services.ErrValidation, "catalog", "validate query", "query has no identifying text", nil)
	}
	return nil
}

// IsTrackQuery reports whether the query names a specific track.
func (q Query) IsTrackQuery() bool {
	return textutil.Normalize(q.Title) != ""
}

func (q Query) String() string {
	return fmt.Sprintf("artist=%q title=%q catno=%q", q.Artist, q.Title, q.CatalogNumber)
}
