// Package tagcache provides a pluggable cache with two interchangeable
// backends behind one contract: an in-process store (package memory) and a
// distributed Redis store (package redis). Entries live under a mandatory
// namespace, carry an optional expiration and a set of tags, and tags
// support bulk invalidation of every associated key at once.
//
// The contract below is documented against the weaker, distributed-backend
// guarantees. The in-process backend opportunistically offers stronger
// consistency (tag associations are fully superseded on overwrite), but
// callers must not depend on that when the backend is configurable.
package tagcache

import "context"

// Value is the closed set of payload shapes a cache stores: UTF-8 text or
// raw bytes. Named types whose underlying type is string or []byte qualify
// as well.
type Value interface {
	~string | ~[]byte
}

// SetOptions carries the optional parameters of Set.
type SetOptions struct {
	// Expiration controls when the entry lapses. The zero value means no
	// expiration.
	Expiration Expiration

	// Tags associates the entry with zero or more invalidation groups.
	Tags []string
}

// Cache is the uniform contract implemented by both backends. All methods
// honor context cancellation; bulk operations stop issuing further work and
// propagate the context error rather than completing silently.
type Cache[V Value] interface {
	// Set stores value under key, replacing any existing value and tag
	// associations for that key. An expiration resolving to a zero or
	// negative lifetime is accepted and expires immediately.
	Set(ctx context.Context, key string, value V, opts SetOptions) error

	// Get returns the value stored under key, or ErrNotFound when the key
	// is absent or expired; the two states are indistinguishable.
	Get(ctx context.Context, key string) (V, error)

	// Exists reports whether a live, unexpired entry is present. It does
	// not reset a sliding expiration window.
	Exists(ctx context.Context, key string) (bool, error)

	// Remove deletes the entry under key. Removing an absent key is a
	// no-op, not an error.
	Remove(ctx context.Context, key string) error

	// RemoveByPrefix deletes every live entry whose logical key starts
	// with prefix. A degenerate prefix (blank, whitespace, or nothing but
	// wildcards) is a safe no-op rather than a namespace wipe.
	RemoveByPrefix(ctx context.Context, prefix string) error

	// RemoveByTags deletes the union of all keys associated with any of
	// the given tags. Tags are de-duplicated; an unknown tag is a no-op.
	RemoveByTags(ctx context.Context, tags ...string) error

	// Clear deletes every key under this cache's namespace and leaves
	// keys of other namespaces on the same physical store untouched.
	Clear(ctx context.Context) error

	// Keys returns the live logical keys of the namespace, optionally
	// filtered to those starting with pattern; a blank or all-wildcard
	// pattern lists everything. Ordering is unspecified.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Close releases resources the backend owns. It never closes
	// collaborators supplied by the caller.
	Close() error
}
