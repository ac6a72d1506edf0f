// Package cache holds the market snapshot cache and the per-request account cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/domain/repository"
	"MarketMinute/internal/service/marketclock"
	pkgcache "MarketMinute/pkg/cache"
	"MarketMinute/pkg/logger"
)

const keyPrefix = "ticker"

// Key is the store key for symbol.
func Key(symbol string) string {
	return pkgcache.GenerateKey(keyPrefix, symbol)
}

// SnapshotCache serves ticker snapshots from a store and refreshes misses
// with one batched upstream call. Upstream failures degrade to cached-only results.
type SnapshotCache struct {
	store    pkgcache.AdminStore
	provider repository.SnapshotProvider
	policy   *marketclock.Policy
	class    marketclock.DataClass
	defTTL   time.Duration
	now      func() time.Time
	metrics  repository.Metrics
	l        *logger.Logger
	agg      *logger.LogCollector
	flights  *inflight

	hits, misses, fetches, fetchErrors, collapsed atomic.Int64
}

// Option configures a SnapshotCache.
type Option func(*SnapshotCache)

func WithClock(now func() time.Time) Option {
	return func(c *SnapshotCache) { c.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *SnapshotCache) { c.l = l }
}

// WithLogCollector routes upstream failures through c so an outage logs once per window.
func WithLogCollector(agg *logger.LogCollector) Option {
	return func(c *SnapshotCache) { c.agg = agg }
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *SnapshotCache) { c.metrics = m }
}

// WithDefaultTTL sets the lifetime used while the market is open.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *SnapshotCache) { c.defTTL = d }
}

func WithDataClass(class marketclock.DataClass) Option {
	return func(c *SnapshotCache) { c.class = class }
}

func NewSnapshotCache(store pkgcache.AdminStore, provider repository.SnapshotProvider, policy *marketclock.Policy, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		store:    store,
		provider: provider,
		policy:   policy,
		class:    marketclock.Quote,
		defTTL:   time.Minute,
		now:      time.Now,
		metrics:  repository.NopMetrics{},
		flights:  newInflight(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSnapshots returns cached snapshots followed by freshly fetched ones.
// Symbols must already be normalized and distinct. It never returns an error:
// anything the upstream could not deliver is simply absent.
func (c *SnapshotCache) GetSnapshots(ctx context.Context, symbols []string) ([]models.TickerSnapshot, models.CacheStats) {
	if len(symbols) == 0 {
		return []models.TickerSnapshot{}, models.CacheStats{}
	}

	cached, toFetch := c.lookup(ctx, symbols)
	stats := models.CacheStats{Hits: len(cached), Misses: len(toFetch), Total: len(symbols)}
	c.hits.Add(int64(stats.Hits))
	c.misses.Add(int64(stats.Misses))
	c.metrics.RecordCacheLookup(stats.Hits, stats.Misses)

	out := cached
	if len(toFetch) > 0 {
		out = append(out, c.refresh(ctx, toFetch)...)
	}
	if c.l != nil {
		c.l.Debug("snapshot lookup",
			logger.Int("hits", stats.Hits),
			logger.Int("misses", stats.Misses),
			logger.Int("returned", len(out)))
	}
	return out, stats
}

func (c *SnapshotCache) lookup(ctx context.Context, symbols []string) (cached []models.TickerSnapshot, toFetch []string) {
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = Key(s)
	}

	raw, err := c.store.MGet(ctx, keys...)
	if err != nil {
		if c.l != nil {
			c.l.Warn("snapshot store read failed, treating all as misses", logger.Error(err))
		}
		return nil, append([]string(nil), symbols...)
	}

	now := c.now()
	cached = make([]models.TickerSnapshot, 0, len(symbols))
	for i, s := range symbols {
		if i < len(raw) && raw[i] != nil {
			var e models.CacheEntry[models.TickerSnapshot]
			if json.Unmarshal(raw[i], &e) == nil && !e.Expired(now) {
				cached = append(cached, e.Value)
				continue
			}
		}
		toFetch = append(toFetch, s)
	}
	return cached, toFetch
}

// refresh fetches what no one else is fetching and waits for the rest.
func (c *SnapshotCache) refresh(ctx context.Context, symbols []string) []models.TickerSnapshot {
	lead, wait := c.flights.claim(symbols)
	c.collapsed.Add(int64(len(wait)))

	var fresh []models.TickerSnapshot
	if len(lead) > 0 {
		fresh = c.fetch(ctx, lead)
	}

	var retry []string
	for _, s := range symbols {
		fl, ok := wait[s]
		if !ok {
			continue
		}
		select {
		case <-fl.done:
			switch {
			case errors.Is(fl.err, errLeaderGone):
				retry = append(retry, s)
			case fl.err == nil && fl.snap != nil:
				fresh = append(fresh, *fl.snap)
			}
		case <-ctx.Done():
			return fresh
		}
	}

	// The leader's caller went away mid-call; fetch under our own context.
	if len(retry) > 0 && ctx.Err() == nil {
		fresh = append(fresh, c.refresh(ctx, retry)...)
	}
	return fresh
}

func (c *SnapshotCache) fetch(ctx context.Context, symbols []string) []models.TickerSnapshot {
	start := c.now()
	c.fetches.Add(1)
	snaps, err := c.callProvider(ctx, symbols)
	gone := ctx.Err() != nil
	c.metrics.RecordUpstreamFetch("fmp", len(symbols), c.now().Sub(start).Seconds(), err)

	if err != nil {
		if gone {
			// Not an upstream failure: waiters retry under their own contexts.
			c.flights.resolve(symbols, nil, errLeaderGone)
			return nil
		}
		c.fetchErrors.Add(1)
		c.flights.resolve(symbols, nil, err)
		c.upstreamFailed(symbols, err)
		return nil
	}

	requested := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		requested[s] = struct{}{}
	}

	now := c.now()
	ttl := c.policy.TTLFor(c.class, c.defTTL, now)
	found := make(map[string]models.TickerSnapshot, len(snaps))
	fresh := make([]models.TickerSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if _, ok := requested[s.Symbol]; !ok {
			continue
		}
		if _, dup := found[s.Symbol]; dup {
			continue
		}
		found[s.Symbol] = s
		fresh = append(fresh, s)
	}

	// A cancelled caller writes nothing and gets nothing, but the
	// snapshots still reach anyone waiting on this flight.
	if gone {
		c.flights.resolve(symbols, found, nil)
		return nil
	}

	for _, s := range fresh {
		if err := pkgcache.SetJSON(ctx, c.store, Key(s.Symbol), models.NewCacheEntry(s, now, ttl), ttl); err != nil && c.l != nil {
			c.l.Warn("snapshot write failed", logger.String("symbol", s.Symbol), logger.Error(err))
		}
	}
	c.flights.resolve(symbols, found, nil)
	return fresh
}

func (c *SnapshotCache) callProvider(ctx context.Context, symbols []string) (snaps []models.TickerSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot provider panic: %v", r)
		}
	}()
	return c.provider.FetchSnapshots(ctx, symbols)
}

// Stats reports housekeeping counters. Entry count is best effort.
func (c *SnapshotCache) Stats(ctx context.Context) models.CacheReport {
	entries, err := c.store.Len(ctx)
	if err != nil && c.l != nil {
		c.l.Warn("snapshot store len failed", logger.Error(err))
	}
	return models.CacheReport{
		Backend:         c.store.Name(),
		Entries:         entries,
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		UpstreamFetches: c.fetches.Load(),
		UpstreamErrors:  c.fetchErrors.Load(),
		Collapsed:       c.collapsed.Load(),
		GeneratedAt:     c.now(),
	}
}

// Clear drops every cached snapshot.
func (c *SnapshotCache) Clear(ctx context.Context) models.ClearResult {
	n, err := c.store.Clear(ctx)
	if err != nil && c.l != nil {
		c.l.Warn("snapshot store clear incomplete", logger.Int("cleared", n), logger.Error(err))
	}
	if c.l != nil {
		c.l.Info("snapshot cache cleared", logger.Int("cleared", n))
	}
	return models.ClearResult{Success: err == nil, TotalCleared: n, Timestamp: c.now()}
}

func (c *SnapshotCache) upstreamFailed(symbols []string, err error) {
	fields := []logger.Field{logger.Strings("symbols", symbols), logger.Error(err)}
	switch {
	case c.agg != nil:
		c.agg.Error("upstream snapshot fetch failed, serving cached only", fields...)
	case c.l != nil:
		c.l.Error("upstream snapshot fetch failed, serving cached only", fields...)
	}
}
