package cache

import (
	"container/list"
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/magus-names/magus/pkg/models"
)

// MemoryBackend is a bounded in-process store with LRU eviction and per-entry
// expiry. Every operation holds a single mutex and never does I/O under it.
//
// Expiry and eviction are independent: an entry may be evicted before its TTL,
// and is otherwise only removed once expired (lazily on access, or by the
// janitor) or when explicitly deleted.
type MemoryBackend struct {
	mu       sync.Mutex
	items    map[string]*memoryItem
	lru      *list.List // front is most recently used
	capacity int

	hits      int64
	misses    int64
	evictions int64

	now    func() time.Time
	logger *zap.Logger
}

type memoryItem struct {
	key      string
	value    []byte
	inserted time.Time
	expiry   time.Time // zero means no expiry
	element  *list.Element
}

func (it *memoryItem) expired(now time.Time) bool {
	return !it.expiry.IsZero() && !now.Before(it.expiry)
}

// NewMemoryBackend creates a MemoryBackend holding at most capacity entries.
func NewMemoryBackend(capacity int, logger *zap.Logger) (*MemoryBackend, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: memory capacity must be positive, got %d", ErrInit, capacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBackend{
		items:    make(map[string]*memoryItem),
		lru:      list.New(),
		capacity: capacity,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Get returns a copy of the value and promotes the entry to most recently used.
// An expired entry is purged and counts as a miss.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok {
		m.misses++
		return nil, false, nil
	}
	if it.expired(m.now()) {
		m.removeItem(it)
		m.misses++
		m.logger.Debug("cache entry expired", zap.String("key", key))
		return nil, false, nil
	}

	m.lru.MoveToFront(it.element)
	m.hits++

	value := make([]byte, len(it.value))
	copy(value, it.value)
	return value, true, nil
}

// Set stores a copy of value. Inserting a new key into a full store evicts the
// least recently used entry first. Overwriting a key resets its expiry.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var expiry time.Time
	if ttl > 0 {
		expiry = now.Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	if it, ok := m.items[key]; ok {
		it.value = stored
		it.inserted = now
		it.expiry = expiry
		m.lru.MoveToFront(it.element)
		return nil
	}

	for len(m.items) >= m.capacity {
		oldest := m.lru.Back()
		if oldest == nil {
			break
		}
		victim := oldest.Value.(*memoryItem)
		m.removeItem(victim)
		m.evictions++
		m.logger.Debug("cache entry evicted", zap.String("key", victim.key))
	}

	it := &memoryItem{key: key, value: stored, inserted: now, expiry: expiry}
	it.element = m.lru.PushFront(it)
	m.items[key] = it
	return nil
}

// Delete removes key and reports whether it was present.
func (m *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok {
		return false, nil
	}
	m.removeItem(it)
	return true, nil
}

// ClearAll removes every entry. Counters are kept.
func (m *MemoryBackend) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*memoryItem)
	m.lru.Init()
	return nil
}

// ClearByPattern removes keys matching a glob pattern (path.Match syntax).
func (m *MemoryBackend) ClearByPattern(_ context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("%w: pattern %q: %v", ErrBackend, pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var victims []*memoryItem
	for key, it := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			victims = append(victims, it)
		}
	}
	for _, it := range victims {
		m.removeItem(it)
	}
	return len(victims), nil
}

// Ping always succeeds.
func (m *MemoryBackend) Ping(context.Context) bool { return true }

// Stats returns counters and occupancy.
func (m *MemoryBackend) Stats(context.Context) models.CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return models.CacheStats{
		Backend:   KindMemory,
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
		Size:      int64(len(m.items)),
		Capacity:  int64(m.capacity),
		HitRate:   hitRate(m.hits, m.misses),
	}
}

// Kind returns KindMemory.
func (m *MemoryBackend) Kind() string { return KindMemory }

// Close drops all entries.
func (m *MemoryBackend) Close() error {
	return m.ClearAll(context.Background())
}

// PurgeExpired removes every expired entry and returns how many.
func (m *MemoryBackend) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var victims []*memoryItem
	for _, it := range m.items {
		if it.expired(now) {
			victims = append(victims, it)
		}
	}
	for _, it := range victims {
		m.removeItem(it)
	}
	return len(victims)
}

// StartJanitor purges expired entries every interval until ctx is cancelled.
func (m *MemoryBackend) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.PurgeExpired(); n > 0 {
					m.logger.Debug("purged expired cache entries", zap.Int("count", n))
				}
			}
		}
	}()
}

// removeItem must be called with the lock held.
func (m *MemoryBackend) removeItem(it *memoryItem) {
	if it.element != nil {
		m.lru.Remove(it.element)
	}
	delete(m.items, it.key)
}

func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total)
	}
	return 0
}
