package tagcache

import (
	"fmt"
	"strings"
)

// tagSegment is the reserved sub-prefix separating tag-set keys from data
// keys within a namespace. Logical keys starting with it are invisible to
// Keys and RemoveByPrefix.
const tagSegment = "tag:"

// Keyspace deterministically maps logical keys to storage keys for one
// namespace. The namespace is wrapped in braces so a partitioned store's
// hash-tag routing lands every key of the namespace, tag sets included, on
// the same slot; on a non-partitioned store the braces are inert.
type Keyspace struct {
	namespace string
	prefix    string
	tagPrefix string
}

// NewKeyspace builds the keyspace for namespace. The namespace is
// mandatory: a blank or whitespace-only one fails with
// ErrNamespaceRequired. Braces are rejected because they would corrupt the
// hash tag.
func NewKeyspace(namespace string) (Keyspace, error) {
	if strings.TrimSpace(namespace) == "" {
		return Keyspace{}, ErrNamespaceRequired
	}
	if strings.ContainsAny(namespace, "{}") {
		return Keyspace{}, fmt.Errorf("namespace %q must not contain braces", namespace)
	}
	prefix := "{" + namespace + "}:"
	return Keyspace{
		namespace: namespace,
		prefix:    prefix,
		tagPrefix: prefix + tagSegment,
	}, nil
}

// Namespace returns the namespace this keyspace was built for.
func (k Keyspace) Namespace() string { return k.namespace }

// Key returns the storage key for a logical key.
func (k Keyspace) Key(logical string) string { return k.prefix + logical }

// TagKey returns the storage key of a tag's member set.
func (k Keyspace) TagKey(tag string) string { return k.tagPrefix + tag }

// Logical maps a storage key back to its logical key.
func (k Keyspace) Logical(storageKey string) string {
	return strings.TrimPrefix(storageKey, k.prefix)
}

// Owns reports whether a storage key belongs to this namespace.
func (k Keyspace) Owns(storageKey string) bool {
	return strings.HasPrefix(storageKey, k.prefix)
}

// IsTagKey reports whether a storage key addresses a tag set rather than a
// data entry.
func (k Keyspace) IsTagKey(storageKey string) bool {
	return strings.HasPrefix(storageKey, k.tagPrefix)
}

// Pattern returns the scan pattern matching every storage key of the
// namespace, tag sets included.
func (k Keyspace) Pattern() string { return k.prefix + "*" }

// PrefixPattern returns the scan pattern matching storage keys whose
// logical key starts with prefix.
func (k Keyspace) PrefixPattern(prefix string) string {
	return k.prefix + prefix + "*"
}

// NormalizePrefix trims trailing wildcard characters from a prefix argument
// and reports whether anything usable remains. Blank, whitespace-only and
// all-wildcard prefixes yield ok == false; callers treat those as a no-op
// instead of matching the whole namespace, which guards bulk deletions
// against an accidentally global argument.
func NormalizePrefix(prefix string) (string, bool) {
	if strings.TrimSpace(prefix) == "" {
		return "", false
	}
	trimmed := strings.TrimRight(prefix, "*")
	if strings.TrimSpace(trimmed) == "" {
		return "", false
	}
	return trimmed, true
}
