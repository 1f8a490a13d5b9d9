package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crate/internal/api"
	"crate/internal/config"
	"crate/internal/digging"
	"crate/internal/logging"
	"crate/internal/queue"
	"crate/internal/testsupport"
)

type apiHarness struct {
	server  *httptest.Server
	client  *api.Client
	store   *queue.Store
	catalog *testsupport.CatalogServer
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	catalogServer := testsupport.NewCatalogServer(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithCatalogURL(catalogServer.URL),
		testsupport.WithEngine(func(e *config.Engine) {
			e.InitialBackoffMillis = 1
			e.MaxBackoffMillis = 5
		}),
	)
	cfg.Catalog.RequestsPerMinute = 0
	store := testsupport.MustOpenStore(t, cfg)
	svc, err := digging.NewFromConfig(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	day := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	handler := api.NewHandler(svc, store, logging.NewNop(), api.WithClock(func() time.Time { return day }))
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	client, err := api.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return &apiHarness{server: server, client: client, store: store, catalog: catalogServer}
}

func TestNextEndpointReturnsRankedPage(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	h.catalog.Script("Autechre", testsupport.CatalogResponse{Results: []testsupport.CatalogResult{{ID: 42, Title: "Autechre - Amber", Year: "1994"}}})

	added, err := h.client.Add(ctx, api.AddEntryRequest{Artist: "Autechre", Title: "Foil"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.State != "pending" {
		t.Fatalf("unexpected added state %q", added.State)
	}

	page, err := h.client.Next(ctx, 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].EntryID != added.ID || page.Items[0].Position != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].Kind != "track" || page.Items[0].Match.ReleaseID != 42 {
		t.Fatalf("expected track match on release 42, got %+v", page.Items[0])
	}
	if page.Summary.Total != 1 || page.Summary.Track != 1 || page.CatalogError != "" {
		t.Fatalf("unexpected summary: %+v", page)
	}
}

func TestNextEndpointReportsCatalogError(t *testing.T) {
	h := newAPIHarness(t)
	h.catalog.Script("Down", testsupport.CatalogResponse{Status: http.StatusInternalServerError})
	if _, err := h.client.Add(context.Background(), api.AddEntryRequest{Artist: "Down"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	resp, err := http.Get(h.server.URL + "/api/queue/next?limit=abc")
	if err != nil {
		t.Fatalf("GET next: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 despite catalog failure, got %d", resp.StatusCode)
	}
	var page api.NextResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(page.CatalogError, "catalog unavailable") {
		t.Fatalf("expected catalog error, got %q", page.CatalogError)
	}
	if page.Items == nil || len(page.Items) != 0 || page.Summary.Errored != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestExportEndpointSetsAttachmentHeaders(t *testing.T) {
	h := newAPIHarness(t)
	testsupport.NewEntry(t, h.store, "First", "", "")
	testsupport.NewEntry(t, h.store, "Second", "", "")

	resp, err := http.Get(h.server.URL + "/api/queue/export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="crate-queue-20261014.json"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	var entries []api.QueueEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].Artist != "First" || entries[1].Artist != "Second" {
		t.Fatalf("unexpected export: %+v", entries)
	}
	if h.catalog.Calls("First") != 0 {
		t.Fatal("export must not trigger lookups")
	}
}

func TestEmptyExportEncodesEmptyArray(t *testing.T) {
	h := newAPIHarness(t)
	resp, err := http.Get(h.server.URL + "/api/queue/export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("expected [], got %s", raw)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()

	var statusErr *api.StatusError
	if _, err := h.client.Add(ctx, api.AddEntryRequest{Artist: "  "}); !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty entry, got %v", err)
	}
	if err := h.client.Remove(ctx, 999); !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing entry, got %v", err)
	}
	if _, err := h.client.Retry(ctx, 999); !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing retry, got %v", err)
	}

	resp, err := http.Post(h.server.URL+"/api/queue", "application/json", strings.NewReader(`{"artist":`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}

	long := strings.Repeat("x", 300)
	if _, err := h.client.Add(ctx, api.AddEntryRequest{Artist: long}); !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversize artist, got %v", err)
	}

	resp, err = http.Get(h.server.URL + "/api/queue?state=bogus")
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state, got %d", resp.StatusCode)
	}
}

func TestListRemoveRetryStatsAndHealth(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()

	first, err := h.client.Add(ctx, api.AddEntryRequest{Artist: "One"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := h.client.Add(ctx, api.AddEntryRequest{Artist: "Two", CatalogText: "WARP 12"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, err := h.client.List(ctx, "pending")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != first.ID || entries[1].ID != second.ID {
		t.Fatalf("unexpected list: %+v", entries)
	}

	retried, err := h.client.Retry(ctx, second.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.State != "pending" || retried.Attempts != 0 {
		t.Fatalf("unexpected retried entry: %+v", retried)
	}

	if err := h.client.Remove(ctx, first.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	stats, err := h.client.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	health, err := h.client.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" || health.Entries != 1 || health.SchemaVersion == 0 {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.States["pending"] != 1 || len(health.States) != 1 {
		t.Fatalf("expected per-state counts in health, got %v", health.States)
	}
}

func TestClearEndpointRemovesEverything(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	for _, artist := range []string{"One", "Two", "Three"} {
		if _, err := h.client.Add(ctx, api.AddEntryRequest{Artist: artist}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	removed, err := h.client.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	entries, err := h.client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty queue, got %+v", entries)
	}
	if removed, err := h.client.Clear(ctx); err != nil || removed != 0 {
		t.Fatalf("expected clearing an empty queue to remove nothing, got %d (%v)", removed, err)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newAPIHarness(t)
	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/api/health", nil)
	req.Header.Set(api.RequestIDHeader, "not-a-uuid")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if id := resp.Header.Get(api.RequestIDHeader); id == "" || id == "not-a-uuid" {
		t.Fatalf("expected a generated request id, got %q", id)
	}

	const fixed = "0d4c8a2e-4f3b-4b8e-9c2a-6f1d2e3c4b5a"
	req.Header.Set(api.RequestIDHeader, fixed)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if id := resp.Header.Get(api.RequestIDHeader); id != fixed {
		t.Fatalf("expected request id reused, got %q", id)
	}
}

func TestClientReportsUnavailableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := api.NewClient(url)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Stats(context.Background())
	if !api.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
