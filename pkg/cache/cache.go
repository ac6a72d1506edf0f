package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Store is a byte-level key/value backend with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// MGet returns one slot per key; absent keys are nil.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
}

// Admin exposes housekeeping on a Store.
type Admin interface {
	Name() string
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int, error)
}

// AdminStore is a Store with housekeeping.
type AdminStore interface {
	Store
	Admin
}

// SetJSON marshals value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.SetWithTTL(ctx, key, data, ttl)
}

// MGetTyped retrieves multiple keys and unmarshals to typed map.
// Missing keys and invalid JSON are left out.
func MGetTyped[T any](ctx context.Context, s Store, keys ...string) (map[string]T, error) {
	if len(keys) == 0 {
		return make(map[string]T), nil
	}

	raw, err := s.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	typed := make(map[string]T, len(raw))
	for i, data := range raw {
		if data == nil || i >= len(keys) {
			continue
		}
		var obj T
		if err := json.Unmarshal(data, &obj); err != nil {
			continue
		}
		typed[keys[i]] = obj
	}

	return typed, nil
}
