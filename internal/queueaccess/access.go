// Package queueaccess gives the CLI one queue surface whether a crate server
// is running or the database has to be opened directly.
package queueaccess

import (
	"context"
	"errors"
	"net/http"

	"crate/internal/api"
	"crate/internal/digging"
	"crate/internal/queue"
	"crate/internal/services"
)

// Access provides queue operations regardless of HTTP or direct store backing.
type Access interface {
	Next(ctx context.Context, limit int) (api.NextResponse, error)
	Export(ctx context.Context) ([]api.QueueEntry, error)
	List(ctx context.Context, states []string) ([]api.QueueEntry, error)
	Add(ctx context.Context, req api.AddEntryRequest) (api.QueueEntry, error)
	Remove(ctx context.Context, id int64) error
	Retry(ctx context.Context, id int64) (api.QueueEntry, error)
	Stats(ctx context.Context) (api.QueueSummary, error)
	Clear(ctx context.Context) (int64, error)
}

// IsNotFound reports whether err means the entry does not exist, for either
// backing.
func IsNotFound(err error) bool {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusNotFound
	}
	return errors.Is(err, services.ErrNotFound)
}

// NewHTTPAccess returns an Access backed by a running server.
func NewHTTPAccess(client *api.Client) Access {
	return &httpAccess{client: client}
}

// NewServiceAccess returns an Access backed by an in-process queue service.
func NewServiceAccess(svc *digging.Service) Access {
	return &serviceAccess{svc: svc}
}

type httpAccess struct {
	client *api.Client
}

func (a *httpAccess) Next(ctx context.Context, limit int) (api.NextResponse, error) {
	return a.client.Next(ctx, limit)
}

func (a *httpAccess) Export(ctx context.Context) ([]api.QueueEntry, error) {
	return a.client.Export(ctx)
}

func (a *httpAccess) List(ctx context.Context, states []string) ([]api.QueueEntry, error) {
	return a.client.List(ctx, states...)
}

func (a *httpAccess) Add(ctx context.Context, req api.AddEntryRequest) (api.QueueEntry, error) {
	return a.client.Add(ctx, req)
}

func (a *httpAccess) Remove(ctx context.Context, id int64) error {
	return a.client.Remove(ctx, id)
}

func (a *httpAccess) Retry(ctx context.Context, id int64) (api.QueueEntry, error) {
	return a.client.Retry(ctx, id)
}

func (a *httpAccess) Stats(ctx context.Context) (api.QueueSummary, error) {
	return a.client.Stats(ctx)
}

func (a *httpAccess) Clear(ctx context.Context) (int64, error) {
	return a.client.Clear(ctx)
}

type serviceAccess struct {
	svc *digging.Service
}

func (a *serviceAccess) Next(ctx context.Context, limit int) (api.NextResponse, error) {
	page, err := a.svc.UpNext(ctx, limit)
	if err != nil && !errors.Is(err, digging.ErrCatalogUnavailable) {
		return api.NextResponse{}, err
	}
	return api.FromPage(page, err), nil
}

func (a *serviceAccess) Export(ctx context.Context) ([]api.QueueEntry, error) {
	entries, err := a.svc.ExportAll(ctx)
	if err != nil {
		return nil, err
	}
	return api.FromEntries(entries), nil
}

func (a *serviceAccess) List(ctx context.Context, states []string) ([]api.QueueEntry, error) {
	parsed := make([]queue.State, 0, len(states))
	for _, raw := range states {
		state, ok := queue.ParseState(raw)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "queueaccess", "list", "unknown state "+raw, nil)
		}
		parsed = append(parsed, state)
	}
	entries, err := a.svc.List(ctx, parsed...)
	if err != nil {
		return nil, err
	}
	return api.FromEntries(entries), nil
}

func (a *serviceAccess) Add(ctx context.Context, req api.AddEntryRequest) (api.QueueEntry, error) {
	entry, err := a.svc.Add(ctx, req.Artist, req.Title, req.CatalogText)
	if err != nil {
		return api.QueueEntry{}, err
	}
	return api.FromEntry(entry), nil
}

func (a *serviceAccess) Remove(ctx context.Context, id int64) error {
	return a.svc.Remove(ctx, id)
}

func (a *serviceAccess) Retry(ctx context.Context, id int64) (api.QueueEntry, error) {
	entry, err := a.svc.RetryNow(ctx, id)
	if err != nil {
		return api.QueueEntry{}, err
	}
	return api.FromEntry(entry), nil
}

func (a *serviceAccess) Stats(ctx context.Context) (api.QueueSummary, error) {
	stats, err := a.svc.Stats(ctx)
	if err != nil {
		return api.QueueSummary{}, err
	}
	return api.FromSummary(stats.Summary, stats.InFlight), nil
}

func (a *serviceAccess) Clear(ctx context.Context) (int64, error) {
	return a.svc.Clear(ctx)
}
