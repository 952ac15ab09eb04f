package memory

import "sync"

// keyIndex is the materialized key inventory for one backend instance. The
// store collaborator has no key-enumeration API, so Set and Remove maintain
// this set synchronously and eviction callbacks prune it asynchronously.
type keyIndex struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func newKeyIndex() *keyIndex {
	return &keyIndex{keys: make(map[string]struct{})}
}

func (i *keyIndex) add(key string) {
	i.mu.Lock()
	i.keys[key] = struct{}{}
	i.mu.Unlock()
}

func (i *keyIndex) remove(key string) {
	i.mu.Lock()
	delete(i.keys, key)
	i.mu.Unlock()
}

func (i *keyIndex) len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.keys)
}

func (i *keyIndex) snapshot() []string {
	i.mu.RLock()
	out := make([]string, 0, len(i.keys))
	for k := range i.keys {
		out = append(out, k)
	}
	i.mu.RUnlock()
	return out
}

func (i *keyIndex) reset() {
	i.mu.Lock()
	i.keys = make(map[string]struct{})
	i.mu.Unlock()
}

// tagIndex maintains both directions of the tag-to-keys relation under one
// mutex: tag → member keys, and key → its current tags (the reverse index
// that makes single-key detachment cheap).
type tagIndex struct {
	mu    sync.Mutex
	byTag map[string]map[string]struct{}
	byKey map[string]map[string]struct{}
}

func newTagIndex() *tagIndex {
	return &tagIndex{
		byTag: make(map[string]map[string]struct{}),
		byKey: make(map[string]map[string]struct{}),
	}
}

// record replaces key's tag associations with tags. Old tags absent from
// the new set are detached, and tag sets left empty are dropped.
func (i *tagIndex) record(key string, tags []string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.detachLocked(key)
	if len(tags) == 0 {
		return
	}
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
		if i.byTag[tag] == nil {
			i.byTag[tag] = make(map[string]struct{})
		}
		i.byTag[tag][key] = struct{}{}
	}
	i.byKey[key] = set
}

// detach removes key from every tag set it belongs to.
func (i *tagIndex) detach(key string) {
	i.mu.Lock()
	i.detachLocked(key)
	i.mu.Unlock()
}

// detachLocked must be called with mu held.
func (i *tagIndex) detachLocked(key string) {
	for tag := range i.byKey[key] {
		if members, ok := i.byTag[tag]; ok {
			delete(members, key)
			if len(members) == 0 {
				delete(i.byTag, tag)
			}
		}
	}
	delete(i.byKey, key)
}

// take drains the key sets of the requested tags in one critical section,
// so a concurrent writer cannot repopulate a set mid-drain. Duplicate tags
// and unknown tags fall through harmlessly. Every drained key is fully
// detached, including from tags outside the requested set, and the union
// is returned for the caller to remove from the store and key index.
func (i *tagIndex) take(tags []string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	union := make(map[string]struct{})
	for _, tag := range tags {
		members, ok := i.byTag[tag]
		if !ok {
			continue
		}
		delete(i.byTag, tag)
		for key := range members {
			union[key] = struct{}{}
		}
	}

	out := make([]string, 0, len(union))
	for key := range union {
		i.detachLocked(key)
		out = append(out, key)
	}
	return out
}

func (i *tagIndex) reset() {
	i.mu.Lock()
	i.byTag = make(map[string]map[string]struct{})
	i.byKey = make(map[string]map[string]struct{})
	i.mu.Unlock()
}
