package tagcache

import "time"

// Expiration describes when a cache entry lapses. An absolute instant wins
// over a relative duration; Sliding restarts the remaining lifetime on
// every successful read, and a fixed instant or duration set alongside it
// caps how far reads can extend the entry. Only the in-process backend
// supports sliding windows; the distributed backend rejects them with
// ErrSlidingUnsupported.
//
// The zero value means the entry never expires.
type Expiration struct {
	// At is the absolute instant the entry expires.
	At time.Time

	// After is the entry's lifetime counted from the write. Ignored when
	// At is set.
	After time.Duration

	// Sliding is a lifetime that resets on every successful read, never
	// past a fixed deadline set alongside it.
	Sliding time.Duration
}

// TTL resolves the descriptor against now into a concrete lifetime; the
// boolean reports whether a fixed lifetime applies at all. The resolved
// lifetime may be zero or negative when At already passed: backends accept
// such writes and let the store expire them immediately instead of
// rejecting them.
func (e Expiration) TTL(now time.Time) (time.Duration, bool) {
	if !e.At.IsZero() {
		return e.At.Sub(now), true
	}
	if e.After != 0 {
		return e.After, true
	}
	return 0, false
}

// IsZero reports whether the descriptor requests no expiration at all.
func (e Expiration) IsZero() bool {
	return e.At.IsZero() && e.After == 0 && e.Sliding == 0
}
