package catalog_test

import (
	"errors"
	"testing"
	"time"

	"crate/internal/catalog"
)

func TestOutcomeConstructors(t *testing.T) {
	resolved := catalog.Resolved(catalog.Match{EntityID: "release/1", Confidence: 0.5})
	if _, ok := resolved.Match(); !ok || resolved.Kind() != catalog.KindResolved {
		t.Fatalf("unexpected resolved outcome: %s", resolved)
	}
	if _, ok := catalog.Unresolved().Match(); ok {
		t.Fatal("unresolved outcome must not carry a match")
	}
	if got := catalog.RateLimited(-time.Second).RetryAfter(); got != 0 {
		t.Fatalf("expected negative retry-after clamped to zero, got %v", got)
	}
	exhausted := catalog.RetriesExhausted()
	if !errors.Is(exhausted.Err(), catalog.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", exhausted.Err())
	}
	if exhausted.Err().Error() != "external retries exhausted" {
		t.Fatalf("unexpected exhausted message %q", exhausted.Err())
	}
	cause := errors.New("connection reset")
	transport := catalog.TransportError(cause)
	if !errors.Is(transport.Err(), catalog.ErrTransport) || !errors.Is(transport.Err(), cause) {
		t.Fatalf("expected transport error to wrap both marker and cause, got %v", transport.Err())
	}
}

func TestQueryValidate(t *testing.T) {
	if err := catalog.NewQuery("", " ", "-").Validate(); err == nil {
		t.Fatal("expected validation error for empty query")
	}
	if err := catalog.NewQuery("", "", "WARP 92").Validate(); err != nil {
		t.Fatalf("catalog number alone should be a valid query: %v", err)
	}
	q := catalog.NewQuery("  Boards   of Canada ", "Roygbiv", "")
	if q.Artist != "Boards of Canada" || !q.IsTrackQuery() {
		t.Fatalf("unexpected normalized query: %+v", q)
	}
}
