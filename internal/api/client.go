package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrAPIUnavailable reports that no crate server answered.
var ErrAPIUnavailable = errors.New("crate API unavailable")

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Message)
}

// Client talks to a running crate server.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for bind, which may be host:port or a URL.
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		// Up-next waits on catalog lookups server-side.
		http: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Next fetches the up-next page.
func (c *Client) Next(ctx context.Context, limit int) (NextResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var resp NextResponse
	err := c.do(ctx, http.MethodGet, "/api/queue/next", values, nil, &resp)
	return resp, err
}

// Export fetches every entry in creation order.
func (c *Client) Export(ctx context.Context) ([]QueueEntry, error) {
	var entries []QueueEntry
	err := c.do(ctx, http.MethodGet, "/api/queue/export", nil, nil, &entries)
	return entries, err
}

// List fetches entries, optionally filtered by state.
func (c *Client) List(ctx context.Context, states ...string) ([]QueueEntry, error) {
	values := url.Values{}
	for _, state := range states {
		if trimmed := strings.TrimSpace(state); trimmed != "" {
			values.Add("state", trimmed)
		}
	}
	var resp QueueListResponse
	err := c.do(ctx, http.MethodGet, "/api/queue", values, nil, &resp)
	return resp.Entries, err
}

// Add enqueues a new entry.
func (c *Client) Add(ctx context.Context, req AddEntryRequest) (QueueEntry, error) {
	var resp QueueEntryResponse
	err := c.do(ctx, http.MethodPost, "/api/queue", nil, req, &resp)
	return resp.Entry, err
}

// Remove deletes an entry.
func (c *Client) Remove(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/queue/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// Retry clears an entry's backoff so the next up-next call looks it up.
func (c *Client) Retry(ctx context.Context, id int64) (QueueEntry, error) {
	var resp QueueEntryResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/"+strconv.FormatInt(id, 10)+"/retry", nil, nil, &resp)
	return resp.Entry, err
}

// Stats fetches queue accounting.
func (c *Client) Stats(ctx context.Context) (QueueSummary, error) {
	var resp QueueStatsResponse
	err := c.do(ctx, http.MethodGet, "/api/queue/stats", nil, nil, &resp)
	return resp.Summary, err
}

// Clear removes every queue entry and reports how many were removed.
func (c *Client) Clear(ctx context.Context) (int64, error) {
	var resp ClearResponse
	err := c.do(ctx, http.MethodDelete, "/api/queue", nil, nil, &resp)
	return resp.Removed, err
}

// Health fetches server health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, body any, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsAPIUnavailable reports whether err means no server was reachable.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
