package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/domain/repository"
)

// AccountCache memoizes account rows for the lifetime of one inbound request.
// It has no TTL; the owner must Clear it when the request ends.
type AccountCache struct {
	store repository.AccountStore
	group singleflight.Group

	mu sync.Mutex
	m  map[string]*models.Account
}

func NewAccountCache(store repository.AccountStore) *AccountCache {
	return &AccountCache{store: store, m: make(map[string]*models.Account)}
}

// Get resolves email, hitting the store at most once per identity.
// A missing account is cached as nil.
func (c *AccountCache) Get(ctx context.Context, email string) (*models.Account, error) {
	c.mu.Lock()
	if acc, ok := c.m[email]; ok {
		c.mu.Unlock()
		return acc, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(email, func() (interface{}, error) {
		acc, err := c.store.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("find account: %w", err)
		}
		c.mu.Lock()
		c.m[email] = acc
		c.mu.Unlock()
		return acc, nil
	})
	if err != nil {
		return nil, err
	}
	acc, _ := v.(*models.Account)
	return acc, nil
}

// Len is the number of identities resolved so far.
func (c *AccountCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Clear forgets everything.
func (c *AccountCache) Clear() {
	c.mu.Lock()
	c.m = make(map[string]*models.Account)
	c.mu.Unlock()
}

type accountCacheKey struct{}

// ContextWithAccountCache attaches c to ctx.
func ContextWithAccountCache(ctx context.Context, c *AccountCache) context.Context {
	return context.WithValue(ctx, accountCacheKey{}, c)
}

// AccountCacheFrom returns the request's cache, if any.
func AccountCacheFrom(ctx context.Context) (*AccountCache, bool) {
	c, ok := ctx.Value(accountCacheKey{}).(*AccountCache)
	return c, ok
}
