package digging

import (
	"context"
	"fmt"

	"crate/internal/catalog"
	"crate/internal/logging"
	"crate/internal/queue"
	"crate/internal/ranker"
	"crate/internal/services"
)

// ExportAll returns every entry in creation order. It never triggers lookups.
func (s *Service) ExportAll(ctx context.Context) ([]*queue.Entry, error) {
	entries, err := s.store.List(ctx, queue.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("export queue: %w", err)
	}
	if entries == nil {
		entries = []*queue.Entry{}
	}
	return entries, nil
}

// List returns entries in creation order, optionally filtered by state.
func (s *Service) List(ctx context.Context, states ...queue.State) ([]*queue.Entry, error) {
	entries, err := s.store.List(ctx, queue.ListFilter{States: states})
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return entries, nil
}

// Add enqueues a new pending entry after validating its identifying text.
func (s *Service) Add(ctx context.Context, artist, title, catalogText string) (*queue.Entry, error) {
	query := catalog.NewQuery(artist, title, catalogText)
	if err := query.Validate(); err != nil {
		return nil, err
	}
	entry, err := s.store.NewEntry(ctx, query.Artist, query.Title, query.CatalogNumber)
	if err != nil {
		return nil, err
	}
	logging.WithContext(services.WithEntryID(ctx, entry.ID), s.logger).Info("entry added",
		logging.String("artist", entry.Artist),
		logging.String("title", entry.Title),
	)
	return entry, nil
}

// Remove deletes an entry.
func (s *Service) Remove(ctx context.Context, id int64) error {
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return services.Wrap(services.ErrNotFound, "digging", "remove", fmt.Sprintf("entry %d", id), nil)
	}
	return nil
}

// Clear removes every entry. Lookups still in flight find their entry gone
// and drop the result.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	removed, err := s.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("queue cleared", logging.Int64("removed", removed))
	return removed, nil
}

// RetryNow clears an entry's backoff bookkeeping so the next UpNext looks it
// up again.
func (s *Service) RetryNow(ctx context.Context, id int64) (*queue.Entry, error) {
	if s.isInFlight(id) {
		return nil, services.Wrap(services.ErrValidation, "digging", "retry", fmt.Sprintf("entry %d lookup in progress", id), nil)
	}
	entry, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, services.Wrap(services.ErrNotFound, "digging", "retry", fmt.Sprintf("entry %d", id), nil)
	}
	entry.State = queue.StatePending
	entry.Attempts = 0
	entry.Exhaustions = 0
	entry.NextAttemptAt = nil
	entry.Match = nil
	entry.LastError = ""
	if err := s.store.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Stats returns queue accounting without any lookups.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.store.List(ctx, queue.ListFilter{})
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Summary: ranker.Rank(entries).Summary, InFlight: s.inFlightCount()}, nil
}
