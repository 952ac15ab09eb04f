package memstore

import (
	"sync"
	"testing"
	"time"

	"github.com/wudi/tagcache"
)

type recorded struct {
	key    string
	reason tagcache.EvictionReason
}

// recorder collects eviction notifications for assertions. Delivery is
// asynchronous, so tests poll through await.
type recorder struct {
	mu  sync.Mutex
	log []recorded
}

func (r *recorder) record(key string, reason tagcache.EvictionReason) {
	r.mu.Lock()
	r.log = append(r.log, recorded{key, reason})
	r.mu.Unlock()
}

func (r *recorder) snapshot() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.log...)
}

func (r *recorder) await(t *testing.T, want int) []recorded {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snapshot := r.snapshot()
		if len(snapshot) >= want {
			return snapshot
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d notifications, want %d", len(snapshot), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestStore(t *testing.T, opts Options) (*Store, *recorder) {
	t.Helper()
	s := New(opts)
	t.Cleanup(func() { _ = s.Close() })
	r := &recorder{}
	s.OnEviction(r.record)
	return s, r
}

func TestStore_PutGet(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Put("key1", "value1", time.Time{}, 0)

	v, ok := s.Get("key1")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(string) != "value1" {
		t.Errorf("value = %v, want value1", v)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStore_Get_Missing(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	if _, ok := s.Get("absent"); ok {
		t.Error("expected miss")
	}
}

func TestStore_Get_Expired(t *testing.T) {
	s, r := newTestStore(t, Options{})

	s.Put("key1", "v", time.Now().Add(-time.Second), 0)

	if _, ok := s.Get("key1"); ok {
		t.Fatal("expired entry should miss")
	}
	log := r.await(t, 1)
	if log[0].key != "key1" || log[0].reason != tagcache.ReasonExpired {
		t.Errorf("notice = %+v, want key1/expired", log[0])
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after lazy expiry", s.Len())
	}
}

func TestStore_Contains_Expired(t *testing.T) {
	s, r := newTestStore(t, Options{})

	s.Put("key1", "v", time.Now().Add(-time.Second), 0)

	if s.Contains("key1") {
		t.Fatal("expired entry should not be contained")
	}
	log := r.await(t, 1)
	if log[0].reason != tagcache.ReasonExpired {
		t.Errorf("reason = %v, want expired", log[0].reason)
	}
}

func TestStore_Sliding_ResetsOnGet(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Put("key1", "v", time.Time{}, 200*time.Millisecond)

	// Each read lands inside the window and pushes the deadline out, so
	// the entry outlives several windows' worth of wall time.
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		if _, ok := s.Get("key1"); !ok {
			t.Fatalf("read %d: entry lapsed despite sliding resets", i)
		}
	}

	// Left untouched past the window, it expires.
	time.Sleep(300 * time.Millisecond)
	if _, ok := s.Get("key1"); ok {
		t.Error("entry should lapse once reads stop")
	}
}

func TestStore_Sliding_CappedByDeadline(t *testing.T) {
	s, r := newTestStore(t, Options{})

	s.Put("key1", "v", time.Now().Add(300*time.Millisecond), time.Second)

	time.Sleep(100 * time.Millisecond)
	if _, ok := s.Get("key1"); !ok {
		t.Fatal("entry should be live inside the deadline")
	}

	// The read slid the window, but never past the fixed deadline.
	time.Sleep(300 * time.Millisecond)
	if _, ok := s.Get("key1"); ok {
		t.Error("entry should lapse at the deadline despite recent reads")
	}
	log := r.await(t, 1)
	if log[0].reason != tagcache.ReasonExpired {
		t.Errorf("reason = %v, want expired", log[0].reason)
	}
}

func TestStore_Contains_DoesNotResetSliding(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Put("key1", "v", time.Time{}, 250*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	if !s.Contains("key1") {
		t.Fatal("entry should still be live")
	}

	// Had Contains reset the window, the deadline would now be 150ms+250ms
	// out and this sleep would land inside it.
	time.Sleep(200 * time.Millisecond)
	if _, ok := s.Get("key1"); ok {
		t.Error("Contains must not extend the entry's life")
	}
}

func TestStore_CapacityEviction(t *testing.T) {
	s, r := newTestStore(t, Options{MaxEntries: 2})

	s.Put("key1", "1", time.Time{}, 0)
	s.Put("key2", "2", time.Time{}, 0)
	s.Put("key3", "3", time.Time{}, 0)

	log := r.await(t, 1)
	if log[0].key != "key1" || log[0].reason != tagcache.ReasonEvicted {
		t.Errorf("notice = %+v, want key1/evicted", log[0])
	}
	if _, ok := s.Get("key1"); ok {
		t.Error("key1 should be displaced")
	}
	if _, ok := s.Get("key3"); !ok {
		t.Error("key3 should be present")
	}
	if s.Evictions() != 1 {
		t.Errorf("Evictions = %d, want 1", s.Evictions())
	}
}

func TestStore_Get_RefreshesRecency(t *testing.T) {
	s, r := newTestStore(t, Options{MaxEntries: 2})

	s.Put("key1", "1", time.Time{}, 0)
	s.Put("key2", "2", time.Time{}, 0)
	s.Get("key1") // key2 is now the eviction candidate
	s.Put("key3", "3", time.Time{}, 0)

	log := r.await(t, 1)
	if log[0].key != "key2" {
		t.Errorf("displaced %q, want key2", log[0].key)
	}
}

func TestStore_Replace_Notice(t *testing.T) {
	s, r := newTestStore(t, Options{})

	s.Put("key1", "old", time.Time{}, 0)
	s.Put("key1", "new", time.Time{}, 0)

	log := r.await(t, 1)
	if log[0].key != "key1" || log[0].reason != tagcache.ReasonReplaced {
		t.Errorf("notice = %+v, want key1/replaced", log[0])
	}

	v, ok := s.Get("key1")
	if !ok || v.(string) != "new" {
		t.Errorf("Get = (%v, %v), want new", v, ok)
	}
	// Replacement is not an eviction.
	if s.Evictions() != 0 {
		t.Errorf("Evictions = %d, want 0", s.Evictions())
	}
}

func TestStore_Remove_Notice(t *testing.T) {
	s, r := newTestStore(t, Options{})

	s.Put("key1", "v", time.Time{}, 0)
	if !s.Remove("key1") {
		t.Fatal("Remove should report the entry was present")
	}
	if s.Remove("key1") {
		t.Error("second Remove should report absence")
	}

	log := r.await(t, 1)
	if log[0].reason != tagcache.ReasonRemoved {
		t.Errorf("reason = %v, want removed", log[0].reason)
	}
}

func TestStore_Janitor_SweepsUntouched(t *testing.T) {
	s, r := newTestStore(t, Options{CleanupInterval: 20 * time.Millisecond})

	s.Put("key1", "v", time.Now().Add(10*time.Millisecond), 0)

	// Never read again: only the janitor can drop it.
	log := r.await(t, 1)
	if log[0].key != "key1" || log[0].reason != tagcache.ReasonExpired {
		t.Errorf("notice = %+v, want key1/expired", log[0])
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after sweep", s.Len())
	}
}

func TestStore_MultipleCallbacks(t *testing.T) {
	s, r1 := newTestStore(t, Options{})
	r2 := &recorder{}
	s.OnEviction(r2.record)

	s.Put("key1", "v", time.Time{}, 0)
	s.Remove("key1")

	r1.await(t, 1)
	r2.await(t, 1)
}

func TestStore_OnEviction_Unregister(t *testing.T) {
	s, kept := newTestStore(t, Options{})
	gone := &recorder{}
	remove := s.OnEviction(gone.record)
	remove()

	s.Put("key1", "v", time.Time{}, 0)
	s.Remove("key1")

	// One notice runs every callback in a single dispatch pass, so once
	// the kept recorder has it the removed one never will.
	kept.await(t, 1)
	if got := gone.snapshot(); len(got) != 0 {
		t.Errorf("unregistered callback was notified: %v", got)
	}
}

func TestStore_Close_Idempotent(t *testing.T) {
	s := New(Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
