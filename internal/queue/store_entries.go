package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"crate/internal/services"
)

// NewEntry inserts a pending entry. At least one field must carry text.
func (s *Store) NewEntry(ctx context.Context, artist, title, catalogText string) (*Entry, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	catalogText = strings.TrimSpace(catalogText)
	if artist == "" && title == "" && catalogText == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "new entry", "artist, title, or catalog text required", nil)
	}

	timestamp := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_entries (
            artist, title, catalog_text, state, attempts, exhaustions, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, 0, ?, ?)`,
		nullableString(artist),
		nullableString(title),
		nullableString(catalogText),
		string(StatePending),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches an entry by identifier. It returns nil, nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	query, args, err := selectEntries().Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}
	entry, err := s.queryEntryWithRetry(ctx, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// Update persists the resolution fields of an existing entry.
func (s *Store) Update(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	matchValue, err := encodeMatch(entry.Match)
	if err != nil {
		return err
	}
	entry.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_entries
         SET artist = ?, title = ?, catalog_text = ?, state = ?, attempts = ?, exhaustions = ?,
             last_attempt_at = ?, next_attempt_at = ?, match_json = ?, last_error = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(entry.Artist),
		nullableString(entry.Title),
		nullableString(entry.CatalogText),
		string(entry.State),
		entry.Attempts,
		entry.Exhaustions,
		nullableTime(entry.LastAttemptAt),
		nullableTime(entry.NextAttemptAt),
		matchValue,
		nullableString(entry.LastError),
		formatTime(entry.UpdatedAt),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return services.Wrap(services.ErrNotFound, "queue", "update entry", fmt.Sprintf("entry %d", entry.ID), nil)
	}
	return nil
}

// Remove deletes an entry. It reports whether a row was removed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_entries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_entries`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
