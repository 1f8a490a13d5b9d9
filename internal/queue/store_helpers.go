package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crate/internal/catalog"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var entryColumns = []string{
	"id", "artist", "title", "catalog_text", "state", "attempts", "exhaustions",
	"last_attempt_at", "next_attempt_at", "match_json", "last_error", "created_at", "updated_at",
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id          int64
		artist      sql.NullString
		title       sql.NullString
		catalogText sql.NullString
		stateStr    string
		attempts    int
		exhaustions int
		lastAttempt sql.NullString
		nextAttempt sql.NullString
		matchJSON   sql.NullString
		lastError   sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&artist,
		&title,
		&catalogText,
		&stateStr,
		&attempts,
		&exhaustions,
		&lastAttempt,
		&nextAttempt,
		&matchJSON,
		&lastError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:          id,
		Artist:      artist.String,
		Title:       title.String,
		CatalogText: catalogText.String,
		State:       State(stateStr),
		Attempts:    attempts,
		Exhaustions: exhaustions,
		LastError:   lastError.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	if lastAttempt.Valid {
		if t, err := parseTimeString(lastAttempt.String); err == nil {
			entry.LastAttemptAt = &t
		}
	}
	if nextAttempt.Valid {
		if t, err := parseTimeString(nextAttempt.String); err == nil {
			entry.NextAttemptAt = &t
		}
	}
	if matchJSON.Valid && matchJSON.String != "" {
		var match catalog.Match
		if err := json.Unmarshal([]byte(matchJSON.String), &match); err != nil {
			return nil, fmt.Errorf("decode match for entry %d: %w", id, err)
		}
		entry.Match = &match
	}
	return entry, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	defer rows.Close()
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func encodeMatch(match *catalog.Match) (any, error) {
	if match == nil {
		return nil, nil
	}
	data, err := json.Marshal(match)
	if err != nil {
		return nil, fmt.Errorf("encode match: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
