package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemory(t *testing.T, capacity int) (*MemoryBackend, *fakeClock) {
	t.Helper()
	m, err := NewMemoryBackend(capacity, nil)
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.now = clock.Now
	return m, clock
}

func TestMemorySetGet(t *testing.T) {
	m, _ := newTestMemory(t, 10)
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != "v" {
		t.Errorf("expected v, got %s", got)
	}

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Error("expected miss")
	}
	st := m.Stats(ctx)
	if st.Hits != 1 || st.Misses != 1 || st.Size != 1 || st.Capacity != 10 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestMemoryTTL(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	ctx := context.Background()

	_ = m.Set(ctx, "k", []byte("v"), time.Second)
	clock.Advance(999 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	// a hit does not extend the expiry
	clock.Advance(2 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss after expiry")
	}
	st := m.Stats(ctx)
	if st.Size != 0 {
		t.Errorf("expired entry should be purged on access, size %d", st.Size)
	}
	if st.Misses != 1 {
		t.Errorf("expected expired read to count as miss, got %d", st.Misses)
	}
}

func TestMemoryTTLRealClock(t *testing.T) {
	m, err := NewMemoryBackend(10, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_ = m.Set(ctx, "k", []byte("v"), 50*time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("expected immediate hit")
	}
	time.Sleep(120 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss after ttl")
	}
}

func TestMemoryNoExpiry(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	ctx := context.Background()

	_ = m.Set(ctx, "forever", []byte("v"), 0)
	clock.Advance(24 * 365 * time.Hour)
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Error("ttl 0 should never expire")
	}
}

func TestMemoryLRUEviction(t *testing.T) {
	const n = 5
	m, _ := newTestMemory(t, n)
	ctx := context.Background()

	for i := range n {
		_ = m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour)
	}
	_ = m.Set(ctx, "extra", []byte("v"), time.Hour)

	if _, ok, _ := m.Get(ctx, "k0"); ok {
		t.Error("expected least recently used key k0 to be evicted")
	}
	for i := 1; i < n; i++ {
		if _, ok, _ := m.Get(ctx, fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("expected k%d to survive", i)
		}
	}
	if st := m.Stats(ctx); st.Evictions != 1 || st.Size != n {
		t.Errorf("expected 1 eviction and size %d, got %+v", n, st)
	}
}

func TestMemoryLRUTouchPromotes(t *testing.T) {
	m, _ := newTestMemory(t, 3)
	ctx := context.Background()

	_ = m.Set(ctx, "a", []byte("1"), time.Hour)
	_ = m.Set(ctx, "b", []byte("2"), time.Hour)
	_ = m.Set(ctx, "c", []byte("3"), time.Hour)
	_, _, _ = m.Get(ctx, "a")
	_ = m.Set(ctx, "d", []byte("4"), time.Hour)

	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted after a was touched")
	}
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Error("expected a to survive")
	}
}

func TestMemoryOverwriteDoesNotEvict(t *testing.T) {
	m, clock := newTestMemory(t, 2)
	ctx := context.Background()

	_ = m.Set(ctx, "a", []byte("1"), time.Second)
	_ = m.Set(ctx, "b", []byte("2"), time.Hour)
	_ = m.Set(ctx, "a", []byte("3"), time.Hour)

	if st := m.Stats(ctx); st.Evictions != 0 || st.Size != 2 {
		t.Errorf("overwrite should not evict: %+v", st)
	}
	clock.Advance(2 * time.Second)
	got, ok, _ := m.Get(ctx, "a")
	if !ok || string(got) != "3" {
		t.Errorf("expected overwritten value with new ttl, got %q ok=%v", got, ok)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m, _ := newTestMemory(t, 2)
	ctx := context.Background()

	in := []byte("abc")
	_ = m.Set(ctx, "k", in, time.Hour)
	in[0] = 'x'

	out, _, _ := m.Get(ctx, "k")
	out[1] = 'y'

	again, _, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated through caller slices: %s", again)
	}
}

func TestMemoryDeleteAndClear(t *testing.T) {
	m, _ := newTestMemory(t, 10)
	ctx := context.Background()

	for _, k := range []string{"names:elvish_count:1", "names:elvish_count:2", "names:dwarven_count:1", "other"} {
		_ = m.Set(ctx, k, []byte("v"), time.Hour)
	}

	ok, _ := m.Delete(ctx, "other")
	if !ok {
		t.Error("expected delete to report existing key")
	}
	if ok, _ := m.Delete(ctx, "other"); ok {
		t.Error("expected second delete to report missing key")
	}

	n, err := m.ClearByPattern(ctx, "names:elvish_*")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
	if _, ok, _ := m.Get(ctx, "names:dwarven_count:1"); !ok {
		t.Error("dwarven entry should survive")
	}

	if _, err := m.ClearByPattern(ctx, "["); !errors.Is(err, ErrBackend) {
		t.Errorf("expected ErrBackend for malformed pattern, got %v", err)
	}

	_ = m.ClearAll(ctx)
	if st := m.Stats(ctx); st.Size != 0 {
		t.Errorf("expected empty cache, got %d", st.Size)
	}
}

func TestMemoryPurgeExpired(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	ctx := context.Background()

	_ = m.Set(ctx, "short", []byte("v"), time.Second)
	_ = m.Set(ctx, "long", []byte("v"), time.Hour)
	clock.Advance(time.Minute)

	if n := m.PurgeExpired(); n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}
	if st := m.Stats(ctx); st.Size != 1 {
		t.Errorf("expected 1 remaining, got %d", st.Size)
	}
}

func TestMemoryJanitor(t *testing.T) {
	m, err := NewMemoryBackend(10, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = m.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	m.StartJanitor(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Stats(ctx).Size == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("janitor did not purge expired entry")
}

func TestMemoryInvalidCapacity(t *testing.T) {
	if _, err := NewMemoryBackend(0, nil); !errors.Is(err, ErrInit) {
		t.Errorf("expected ErrInit, got %v", err)
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m, err := NewMemoryBackend(50, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range 500 {
				key := fmt.Sprintf("k%d", (w*i)%80)
				_ = m.Set(ctx, key, []byte(key), time.Minute)
				_, _, _ = m.Get(ctx, key)
				if i%50 == 0 {
					_, _ = m.ClearByPattern(ctx, "k1*")
				}
			}
		}(w)
	}
	wg.Wait()

	if st := m.Stats(ctx); st.Size > 50 {
		t.Errorf("size exceeded capacity: %d", st.Size)
	}
}
