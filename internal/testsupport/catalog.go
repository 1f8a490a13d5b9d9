package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// CatalogResponse scripts one reply of the fake catalog.
type CatalogResponse struct {
	Status     int
	RetryAfter int
	Results    []CatalogResult
}

// CatalogResult is a search result in the wire shape of the catalog.
type CatalogResult struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Year  string `json:"year,omitempty"`
	CatNo string `json:"catno,omitempty"`
}

// CatalogServer is an httptest catalog that answers per artist. Scripted
// replies are consumed in order; the last one repeats.
type CatalogServer struct {
	*httptest.Server

	mu      sync.Mutex
	scripts map[string][]CatalogResponse
	calls   map[string]int
}

// NewCatalogServer starts a fake catalog and registers cleanup.
func NewCatalogServer(t testing.TB) *CatalogServer {
	t.Helper()

	cs := &CatalogServer{
		scripts: make(map[string][]CatalogResponse),
		calls:   make(map[string]int),
	}
	cs.Server = httptest.NewServer(http.HandlerFunc(cs.handle))
	t.Cleanup(cs.Close)
	return cs
}

// Script sets the replies for an artist.
func (cs *CatalogServer) Script(artist string, responses ...CatalogResponse) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.scripts[artist] = responses
}

// Calls returns how many searches named the artist.
func (cs *CatalogServer) Calls(artist string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.calls[artist]
}

func (cs *CatalogServer) handle(w http.ResponseWriter, r *http.Request) {
	artist := r.URL.Query().Get("artist")

	cs.mu.Lock()
	cs.calls[artist]++
	script := cs.scripts[artist]
	var resp CatalogResponse
	switch len(script) {
	case 0:
		resp = CatalogResponse{Status: http.StatusOK}
	case 1:
		resp = script[0]
	default:
		resp = script[0]
		cs.scripts[artist] = script[1:]
	}
	cs.mu.Unlock()

	if resp.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	results := resp.Results
	if results == nil {
		results = []CatalogResult{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"results": results}); err != nil {
		http.Error(w, fmt.Sprintf("encode: %v", err), http.StatusInternalServerError)
	}
}
