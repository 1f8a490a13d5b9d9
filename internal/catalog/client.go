package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	headerRateLimit          = "X-Discogs-Ratelimit"
	headerRateLimitRemaining = "X-Discogs-Ratelimit-Remaining"
	defaultWindowRequests    = 60
	maxResponseBytes         = 4 << 20
)

// Searcher is the lookup contract the retry governor depends on.
type Searcher interface {
	Lookup(ctx context.Context, query Query) Outcome
}

// Throttler receives pause hints observed on successful responses.
type Throttler interface {
	Throttle(d time.Duration)
}

// Client searches the catalog database over HTTP.
type Client struct {
	token      string
	baseURL    string
	userAgent  string
	perPage    int
	httpClient *http.Client
	throttler  Throttler
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPerPage sets how many search results are scored per lookup.
func WithPerPage(perPage int) Option {
	return func(c *Client) {
		if perPage > 0 {
			c.perPage = perPage
		}
	}
}

// WithThrottler forwards rate-limit window hints to the shared limiter.
func WithThrottler(t Throttler) Option {
	return func(c *Client) {
		c.throttler = t
	}
}

// New creates a catalog client.
func New(token, baseURL, userAgent string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("catalog token required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		userAgent = "crate/dev"
	}
	client := &Client{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		perPage:    10,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Lookup performs one database search. It never returns RetriesExhausted.
func (c *Client) Lookup(ctx context.Context, query Query) Outcome {
	if err := query.Validate(); err != nil {
		return TransportError(err)
	}
	endpoint, err := url.Parse(c.baseURL + "/database/search")
	if err != nil {
		return TransportError(fmt.Errorf("parse catalog url: %w", err))
	}
	params := url.Values{}
	params.Set("type", "release")
	if query.Artist != "" {
		params.Set("artist", query.Artist)
	}
	if query.Title != "" {
		params.Set("track", query.Title)
	}
	if query.CatalogNumber != "" {
		params.Set("catno", query.CatalogNumber)
	}
	params.Set("per_page", strconv.Itoa(c.perPage))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return TransportError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Discogs token="+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return TransportError(fmt.Errorf("execute request (latency=%v): %w", latency, err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Unresolved()
	case http.StatusTooManyRequests:
		return RateLimited(parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	default:
		return TransportError(fmt.Errorf("catalog search returned %d (latency=%v)", resp.StatusCode, latency))
	}

	c.observeWindow(resp.Header)

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return TransportError(fmt.Errorf("decode catalog response: %w", err))
	}
	result, confidence, ok := best(query, payload.Results)
	if !ok {
		return Unresolved()
	}
	return Resolved(toMatch(query, result, confidence))
}

// observeWindow pauses the limiter for one request slot once the service
// reports an empty window.
func (c *Client) observeWindow(header http.Header) {
	if c.throttler == nil {
		return
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(header.Get(headerRateLimitRemaining)))
	if err != nil || remaining > 0 {
		return
	}
	window := defaultWindowRequests
	if total, err := strconv.Atoi(strings.TrimSpace(header.Get(headerRateLimit))); err == nil && total > 0 {
		window = total
	}
	c.throttler.Throttle(time.Minute / time.Duration(window))
}

// parseRetryAfter accepts delta seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
