package cache

import (
	"context"
	"errors"
	"time"

	"MarketMinute/pkg/logger"
)

// FallbackStore tries a shared primary store and degrades to an in-process
// store whenever the primary errors. Misses are not errors.
type FallbackStore struct {
	primary    AdminStore
	secondary  AdminStore
	l          *logger.Logger
	agg        *logger.LogCollector
	onFallback func(op string)
}

var _ AdminStore = (*FallbackStore)(nil)

// NewFallbackStore decorates primary with secondary.
func NewFallbackStore(primary, secondary AdminStore, opts ...FallbackOption) *FallbackStore {
	f := &FallbackStore{
		primary:   primary,
		secondary: secondary,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FallbackStore) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *FallbackStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := f.primary.Get(ctx, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		f.degraded(ctx, "get", err)
	}
	// Entries written while the primary was down live only in the secondary.
	return f.secondary.Get(ctx, key)
}

func (f *FallbackStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.primary.SetWithTTL(ctx, key, value, ttl); err != nil {
		f.degraded(ctx, "set", err)
		return f.secondary.SetWithTTL(ctx, key, value, ttl)
	}
	return nil
}

func (f *FallbackStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	results, err := f.primary.MGet(ctx, keys...)
	if err != nil {
		f.degraded(ctx, "mget", err)
		return f.secondary.MGet(ctx, keys...)
	}

	var missing []int
	for i, v := range results {
		if v == nil {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return results, nil
	}

	missingKeys := make([]string, len(missing))
	for j, i := range missing {
		missingKeys[j] = keys[i]
	}
	local, err := f.secondary.MGet(ctx, missingKeys...)
	if err != nil {
		return results, nil
	}
	for j, i := range missing {
		results[i] = local[j]
	}
	return results, nil
}

// Len reports the primary count, or the secondary count when the primary is unreachable.
func (f *FallbackStore) Len(ctx context.Context) (int, error) {
	n, err := f.primary.Len(ctx)
	if err != nil {
		f.degraded(ctx, "len", err)
		return f.secondary.Len(ctx)
	}
	return n, nil
}

// Clear clears both tiers. A primary failure is returned after the secondary is cleared.
func (f *FallbackStore) Clear(ctx context.Context) (int, error) {
	local, _ := f.secondary.Clear(ctx)
	n, err := f.primary.Clear(ctx)
	return n + local, err
}

func (f *FallbackStore) degraded(ctx context.Context, op string, err error) {
	if f.onFallback != nil {
		f.onFallback(op)
	}
	fields := []logger.Field{
		logger.String("op", op),
		logger.String("backend", f.primary.Name()),
		logger.Bool("ctx_done", ctx.Err() != nil),
		logger.Error(err),
	}
	switch {
	case f.agg != nil:
		f.agg.Warn("cache backend degraded to in-process store", fields...)
	case f.l != nil:
		f.l.Warn("cache backend degraded to in-process store", fields...)
	}
}
