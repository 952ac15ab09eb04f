// Package memstore provides the default in-process storage engine for the
// memory backend: an LRU-bounded map with per-entry expiration (absolute
// deadlines and sliding windows), lazy expiry on access, a background
// janitor sweep, and asynchronous eviction notifications that carry the
// reason an entry was dropped.
package memstore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/wudi/tagcache"
)

// Options configures a Store.
type Options struct {
	// MaxEntries bounds the store; the least recently used entry is
	// displaced beyond it. Defaults to 10000.
	MaxEntries int

	// CleanupInterval is the janitor period for sweeping expired entries
	// that are never touched again. Defaults to one minute.
	CleanupInterval time.Duration
}

// entry is a stored value plus its expiry state.
type entry struct {
	value    any
	expireAt time.Time     // zero means no deadline
	sliding  time.Duration // > 0 resets expireAt on every read
	capAt    time.Time     // ceiling for sliding resets; zero means none
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// notice is one eviction notification queued for delivery.
type notice struct {
	key    string
	reason tagcache.EvictionReason
}

// evictionCallback is one registered OnEviction handler.
type evictionCallback struct {
	id uint64
	fn func(key string, reason tagcache.EvictionReason)
}

// Store is an in-process store engine. All methods are safe for concurrent
// use. Dropped entries are reported through OnEviction callbacks on a
// dedicated notifier goroutine, in drop order.
type Store struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, *entry]
	reason  tagcache.EvictionReason // attributed to the next LRU eviction callback
	pending []notice                // collected under mu, emitted after unlock

	notices   chan notice
	done      chan struct{}
	closeOnce sync.Once

	cbMu      sync.RWMutex
	cbSeq     uint64
	callbacks []evictionCallback

	evictions  atomic.Int64
	maxEntries int
}

// New creates a Store and starts its janitor and notifier goroutines. Close
// stops both.
func New(opts Options) *Store {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 10000
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	s := &Store{
		reason:     tagcache.ReasonEvicted,
		notices:    make(chan notice, 1024),
		done:       make(chan struct{}),
		maxEntries: opts.MaxEntries,
	}
	lru, _ := simplelru.NewLRU[string, *entry](opts.MaxEntries, s.onEvict) // size > 0, cannot fail
	s.lru = lru
	go s.dispatch()
	go s.janitor(opts.CleanupInterval)
	return s
}

// onEvict runs inside the LRU while mu is held; s.reason says why the entry
// was dropped. Capacity displacement from Add fires it with the default
// ReasonEvicted.
func (s *Store) onEvict(key string, _ *entry) {
	s.evictions.Add(1)
	s.pending = append(s.pending, notice{key: key, reason: s.reason})
}

// removeLocked drops key, attributing reason to the eviction callback.
// Must be called with mu held.
func (s *Store) removeLocked(key string, reason tagcache.EvictionReason) bool {
	s.reason = reason
	ok := s.lru.Remove(key)
	s.reason = tagcache.ReasonEvicted
	return ok
}

// takePending must be called with mu held; the result is emitted after
// unlock so callbacks never run under the store lock.
func (s *Store) takePending() []notice {
	p := s.pending
	s.pending = nil
	return p
}

func (s *Store) emit(pending []notice) {
	for _, n := range pending {
		select {
		case s.notices <- n:
		case <-s.done:
			return
		}
	}
}

func (s *Store) dispatch() {
	for {
		select {
		case n := <-s.notices:
			s.cbMu.RLock()
			cbs := s.callbacks
			s.cbMu.RUnlock()
			for _, cb := range cbs {
				cb.fn(n.key, n.reason)
			}
		case <-s.done:
			return
		}
	}
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep drops every expired entry in one pass.
func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	for _, key := range s.lru.Keys() {
		if e, ok := s.lru.Peek(key); ok && e.expired(now) {
			s.removeLocked(key, tagcache.ReasonExpired)
		}
	}
	pending := s.takePending()
	s.mu.Unlock()
	s.emit(pending)
}

// Put stores value under key. A non-zero expireAt is the entry's fixed
// deadline; sliding > 0 makes every successful Get push the deadline
// forward by that much, but never past a non-zero expireAt. Overwriting
// an existing entry reports the old one as Replaced.
func (s *Store) Put(key string, value any, expireAt time.Time, sliding time.Duration) {
	e := &entry{value: value, expireAt: expireAt, sliding: sliding}
	if sliding > 0 {
		e.capAt = expireAt
		e.expireAt = slideDeadline(time.Now(), sliding, e.capAt)
	}
	s.mu.Lock()
	if _, ok := s.lru.Peek(key); ok {
		s.pending = append(s.pending, notice{key: key, reason: tagcache.ReasonReplaced})
	}
	s.lru.Add(key, e)
	pending := s.takePending()
	s.mu.Unlock()
	s.emit(pending)
}

// slideDeadline returns now extended by the sliding window, clamped to
// capAt when one is set.
func slideDeadline(now time.Time, sliding time.Duration, capAt time.Time) time.Time {
	next := now.Add(sliding)
	if !capAt.IsZero() && next.After(capAt) {
		return capAt
	}
	return next
}

// Get returns the live value under key, resetting its sliding window and
// recency. An expired entry is dropped on the spot and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	now := time.Now()
	s.mu.Lock()
	e, ok := s.lru.Get(key)
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	if e.expired(now) {
		s.removeLocked(key, tagcache.ReasonExpired)
		pending := s.takePending()
		s.mu.Unlock()
		s.emit(pending)
		return nil, false
	}
	if e.sliding > 0 {
		e.expireAt = slideDeadline(now, e.sliding, e.capAt)
	}
	v := e.value
	s.mu.Unlock()
	return v, true
}

// Contains reports whether a live entry for key is present. Unlike Get it
// neither refreshes recency nor resets the sliding window.
func (s *Store) Contains(key string) bool {
	now := time.Now()
	s.mu.Lock()
	e, ok := s.lru.Peek(key)
	if ok && e.expired(now) {
		s.removeLocked(key, tagcache.ReasonExpired)
		pending := s.takePending()
		s.mu.Unlock()
		s.emit(pending)
		return false
	}
	s.mu.Unlock()
	return ok
}

// Remove drops key and reports whether an entry was present.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	ok := s.removeLocked(key, tagcache.ReasonRemoved)
	pending := s.takePending()
	s.mu.Unlock()
	s.emit(pending)
	return ok
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Evictions returns the number of entries dropped for any reason other
// than replacement.
func (s *Store) Evictions() int64 {
	return s.evictions.Load()
}

// OnEviction registers cb for dropped entries and returns a function that
// unregisters it again. Callbacks run one at a time on the store's
// notifier goroutine and must return promptly; a callback that blocks
// stalls delivery for every registered callback.
func (s *Store) OnEviction(cb func(key string, reason tagcache.EvictionReason)) func() {
	s.cbMu.Lock()
	s.cbSeq++
	id := s.cbSeq
	s.callbacks = append(s.callbacks, evictionCallback{id: id, fn: cb})
	s.cbMu.Unlock()
	return func() {
		s.cbMu.Lock()
		// Copy-on-write keeps any slice snapshot dispatch holds valid.
		kept := make([]evictionCallback, 0, len(s.callbacks))
		for _, c := range s.callbacks {
			if c.id != id {
				kept = append(kept, c)
			}
		}
		s.callbacks = kept
		s.cbMu.Unlock()
	}
}

// Close stops the janitor and the notifier. Notifications still queued may
// be dropped. Close is idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
