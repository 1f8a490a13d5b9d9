package queue

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const entriesTable = "queue_entries"

// ListFilter narrows List results. Zero values select everything.
type ListFilter struct {
	States []State
	Limit  int
}

func selectEntries() sq.SelectBuilder {
	return sq.Select(entryColumns...).From(entriesTable)
}

func stateArgs(states []State) []string {
	out := make([]string, 0, len(states))
	for _, state := range states {
		out = append(out, string(state))
	}
	return out
}

// List returns entries in creation order (ties by id).
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Entry, error) {
	builder := selectEntries().OrderBy("created_at ASC", "id ASC")
	if len(filter.States) > 0 {
		builder = builder.Where(sq.Eq{"state": stateArgs(filter.States)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.queryWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return scanEntries(rows)
}

// Due returns entries eligible for a lookup at now, oldest first, skipping
// the excluded identifiers.
func (s *Store) Due(ctx context.Context, now time.Time, limit int, exclude ...int64) ([]*Entry, error) {
	builder := selectEntries().
		Where(sq.Eq{"state": stateArgs(dueStates)}).
		Where(sq.Or{
			sq.Eq{"next_attempt_at": nil},
			sq.LtOrEq{"next_attempt_at": formatTime(now)},
		}).
		OrderBy("created_at ASC", "id ASC")
	if len(exclude) > 0 {
		builder = builder.Where(sq.NotEq{"id": exclude})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due query: %w", err)
	}
	rows, err := s.queryWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("due entries: %w", err)
	}
	return scanEntries(rows)
}

// Stats returns a count of entries grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	query, args, err := sq.Select("state", "COUNT(1)").From(entriesTable).GroupBy("state").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats query: %w", err)
	}
	rows, err := s.queryWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[State(state)] = count
	}
	return stats, rows.Err()
}

// Health describes the database for diagnostics.
type Health struct {
	Path          string
	SchemaVersion int
	Entries       int
	States        map[State]int
}

// CheckHealth pings the database and reports its schema version and size.
func (s *Store) CheckHealth(ctx context.Context) (Health, error) {
	ctx = ensureContext(ctx)
	health := Health{Path: s.path}
	if err := s.db.PingContext(ctx); err != nil {
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return health, err
	}
	health.SchemaVersion = version
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+entriesTable).Scan(&health.Entries); err != nil {
		return health, fmt.Errorf("count entries: %w", err)
	}
	states, err := s.Stats(ctx)
	if err != nil {
		return health, err
	}
	health.States = states
	return health, nil
}
