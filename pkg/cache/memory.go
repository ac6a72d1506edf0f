package cache

import (
	"context"
	"sync"
	"time"

	"MarketMinute/pkg/sweeper"
)

// MemoryItem stores cached bytes with expiration.
type MemoryItem struct {
	Value    []byte
	ExpireAt time.Time
}

func (m *MemoryItem) expired(now time.Time) bool {
	return now.After(m.ExpireAt)
}

// MemoryStore implements Store using an in-process map with LRU eviction.
// Expired entries are dropped on read and by a periodic sweep.
type MemoryStore struct {
	data    map[string]*MemoryItem
	access  map[string]time.Time
	mutex   sync.Mutex
	maxSize int
	now     func() time.Time
	sweeper *sweeper.Sweeper
}

var _ AdminStore = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store and starts its sweeper.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	cfg := &MemoryConfig{
		MaxSize:         10000,
		CleanupInterval: time.Minute,
		Clock:           time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	ms := &MemoryStore{
		data:    make(map[string]*MemoryItem),
		access:  make(map[string]time.Time),
		maxSize: cfg.MaxSize,
		now:     cfg.Clock,
	}
	ms.sweeper = sweeper.New("memory-store", cfg.CleanupInterval, ms.sweep,
		sweeper.WithClock(cfg.Clock), sweeper.WithLogger(cfg.Logger))
	ms.sweeper.Start()
	return ms
}

func (ms *MemoryStore) Name() string { return "memory" }

func (ms *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	now := ms.now()
	item, exists := ms.data[key]
	if !exists || item.expired(now) {
		if exists {
			ms.remove(key)
		}
		return nil, ErrCacheMiss
	}

	ms.access[key] = now
	return item.Value, nil
}

func (ms *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	now := ms.now()
	if _, exists := ms.data[key]; !exists && ms.maxSize > 0 && len(ms.data) >= ms.maxSize {
		ms.evictLRU()
	}

	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	ms.data[key] = &MemoryItem{
		Value:    buf,
		ExpireAt: now.Add(ttl),
	}
	ms.access[key] = now
	return nil
}

func (ms *MemoryStore) MGet(_ context.Context, keys ...string) ([][]byte, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	now := ms.now()
	results := make([][]byte, len(keys))
	for i, key := range keys {
		if item, ok := ms.data[key]; ok && !item.expired(now) {
			results[i] = item.Value
			ms.access[key] = now
		}
	}
	return results, nil
}

// Len counts live entries.
func (ms *MemoryStore) Len(_ context.Context) (int, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	now := ms.now()
	n := 0
	for _, item := range ms.data {
		if !item.expired(now) {
			n++
		}
	}
	return n, nil
}

// Clear drops every entry and reports how many there were.
func (ms *MemoryStore) Clear(_ context.Context) (int, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	n := len(ms.data)
	ms.data = make(map[string]*MemoryItem)
	ms.access = make(map[string]time.Time)
	return n, nil
}

// Sweep evicts expired entries now.
func (ms *MemoryStore) Sweep() int {
	return ms.sweeper.RunOnce()
}

func (ms *MemoryStore) sweep(now time.Time) int {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	removed := 0
	for key, item := range ms.data {
		if item.expired(now) {
			ms.remove(key)
			removed++
		}
	}
	return removed
}

func (ms *MemoryStore) remove(key string) {
	delete(ms.data, key)
	delete(ms.access, key)
}

func (ms *MemoryStore) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, accessTime := range ms.access {
		if oldestKey == "" || accessTime.Before(oldestTime) {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestKey != "" {
		ms.remove(oldestKey)
	}
}

// Close stops the sweeper.
func (ms *MemoryStore) Close() error {
	ms.sweeper.Stop()
	return nil
}
