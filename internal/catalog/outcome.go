package catalog

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRetriesExhausted marks a lookup sequence that stayed rate limited
	// through every allowed attempt.
	ErrRetriesExhausted = errors.New("external retries exhausted")
	// ErrTransport marks a lookup that produced no usable answer.
	ErrTransport = errors.New("catalog transport error")
)

// Kind enumerates the lookup outcome variants.
type Kind int

const (
	KindResolved Kind = iota + 1
	KindUnresolved
	KindRateLimited
	KindRetriesExhausted
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindResolved:
		return "resolved"
	case KindUnresolved:
		return "unresolved"
	case KindRateLimited:
		return "rate_limited"
	case KindRetriesExhausted:
		return "retries_exhausted"
	case KindTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of one catalog lookup or one governed lookup
// sequence. The zero value is invalid; use the constructors.
type Outcome struct {
	kind       Kind
	match      Match
	retryAfter time.Duration
	err        error
}

// Resolved wraps a successful match.
func Resolved(match Match) Outcome {
	return Outcome{kind: KindResolved, match: match}
}

// Unresolved reports that the service answered without a usable hit.
func Unresolved() Outcome {
	return Outcome{kind: KindUnresolved}
}

// RateLimited reports a refused call. retryAfter is the service hint, zero
// when the service sent none.
func RateLimited(retryAfter time.Duration) Outcome {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Outcome{kind: KindRateLimited, retryAfter: retryAfter}
}

// RetriesExhausted reports a sequence that never got past the rate limit.
func RetriesExhausted() Outcome {
	return Outcome{kind: KindRetriesExhausted, err: ErrRetriesExhausted}
}

// TransportError reports a call that produced no usable answer.
func TransportError(cause error) Outcome {
	err := ErrTransport
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, cause)
	}
	return Outcome{kind: KindTransportError, err: err}
}

// Kind returns the variant tag.
func (o Outcome) Kind() Kind { return o.kind }

// Match returns the resolved match. ok is false for every other variant.
func (o Outcome) Match() (Match, bool) {
	if o.kind != KindResolved {
		return Match{}, false
	}
	return o.match, true
}

// RetryAfter returns the service backoff hint of a RateLimited outcome.
func (o Outcome) RetryAfter() time.Duration { return o.retryAfter }

// Err returns the failure carried by RetriesExhausted and TransportError
// outcomes and nil otherwise.
func (o Outcome) Err() error { return o.err }

func (o Outcome) String() string {
	switch o.kind {
	case KindResolved:
		return fmt.Sprintf("resolved(%s %.2f)", o.match.EntityID, o.match.Confidence)
	case KindRateLimited:
		return fmt.Sprintf("rate_limited(retry_after=%s)", o.retryAfter)
	case KindTransportError:
		return fmt.Sprintf("transport_error(%v)", o.err)
	default:
		return o.kind.String()
	}
}
