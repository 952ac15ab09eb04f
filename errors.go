package tagcache

import "errors"

// Sentinel errors shared by both backends. Transport failures from the
// distributed store are wrapped with %w and stay distinguishable from all
// of these through errors.Is, as do context cancellation errors.
var (
	// ErrNotFound reports that a key is absent or expired.
	ErrNotFound = errors.New("tagcache: key not found")

	// ErrNamespaceRequired reports a blank namespace at construction.
	ErrNamespaceRequired = errors.New("tagcache: namespace is required")

	// ErrValueType reports a stored payload whose shape does not match the
	// cache instance's payload type. It occurs when instances of different
	// payload shapes share one store and namespace.
	ErrValueType = errors.New("tagcache: stored value has a different payload shape")

	// ErrSlidingUnsupported reports a sliding-expiration request against a
	// backend that has no sliding concept.
	ErrSlidingUnsupported = errors.New("tagcache: sliding expiration is not supported by this backend")
)
