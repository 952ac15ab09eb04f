package tagcache

// EvictionReason explains why a store dropped an entry. The distinction
// matters to index maintenance: a Replaced entry's tag associations have
// already been superseded by the overwriting write, so the cleanup hook
// must not detach them.
type EvictionReason uint8

const (
	// ReasonExpired marks an entry whose lifetime lapsed.
	ReasonExpired EvictionReason = iota

	// ReasonEvicted marks an entry displaced by capacity pressure.
	ReasonEvicted

	// ReasonReplaced marks an entry superseded by a newer write to the
	// same key.
	ReasonReplaced

	// ReasonRemoved marks an entry dropped by an explicit removal.
	ReasonRemoved
)

func (r EvictionReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonEvicted:
		return "evicted"
	case ReasonReplaced:
		return "replaced"
	case ReasonRemoved:
		return "removed"
	default:
		return "unknown"
	}
}
