package models

import "time"

// TickerSnapshot is one upstream quote. Values are never mutated once produced.
type TickerSnapshot struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name,omitempty"`
	Price        float64  `json:"price"`
	ChangePct    float64  `json:"changePct"`
	Volume       int64    `json:"volume,omitempty"`
	MarketCap    float64  `json:"marketCap,omitempty"`
	High52w      *float64 `json:"high52w,omitempty"`
	Low52w       *float64 `json:"low52w,omitempty"`
	EarningsDate *string  `json:"earningsDate,omitempty"`
}

// CacheEntry wraps a cached value with its own write time and lifetime.
type CacheEntry[T any] struct {
	Value                T     `json:"value"`
	WrittenAtEpochMillis int64 `json:"writtenAt"`
	TTLSeconds           int64 `json:"ttl"`
}

// NewCacheEntry stamps v with now and ttl.
func NewCacheEntry[T any](v T, now time.Time, ttl time.Duration) CacheEntry[T] {
	return CacheEntry[T]{
		Value:                v,
		WrittenAtEpochMillis: now.UnixMilli(),
		TTLSeconds:           int64(ttl / time.Second),
	}
}

// Expired reports whether the entry is stale at now.
func (e CacheEntry[T]) Expired(now time.Time) bool {
	return now.UnixMilli()-e.WrittenAtEpochMillis > e.TTLSeconds*1000
}

// CacheStats counts one snapshot lookup.
type CacheStats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
	Total  int `json:"total"`
}

// CacheReport is the housekeeping view of the snapshot cache.
type CacheReport struct {
	Backend         string    `json:"backend"`
	Entries         int       `json:"entries"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	UpstreamFetches int64     `json:"upstreamFetches"`
	UpstreamErrors  int64     `json:"upstreamErrors"`
	Collapsed       int64     `json:"collapsed"`
	RateLimitKeys   int       `json:"rateLimitWindows"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// ClearResult reports a cache clear.
type ClearResult struct {
	Success      bool      `json:"success"`
	TotalCleared int       `json:"totalCleared"`
	Timestamp    time.Time `json:"timestamp"`
}
