package governor

import (
	"math"
	"math/rand/v2"
	"time"
)

// maxJitter keeps jittered delays below the next attempt's base delay.
const maxJitter = 0.49

// Backoff computes exponential delays with bounded jitter.
// Delay(n) = min(Initial*2^(n-1) * (1 + Jitter*r), Max) with r in [0,1).
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
	Rand    func() float64
}

// Delay returns the wait before retry attempt n (1-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.Initial <= 0 {
		return 0
	}
	base := float64(b.Initial) * math.Pow(2, float64(attempt-1))
	jitter := b.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > maxJitter {
		jitter = maxJitter
	}
	if jitter > 0 {
		random := b.Rand
		if random == nil {
			random = rand.Float64
		}
		base += base * jitter * random()
	}
	if b.Max > 0 && (base > float64(b.Max) || math.IsInf(base, 1)) {
		return b.Max
	}
	return time.Duration(base)
}
