package usecase

import (
	"context"

	"MarketMinute/internal/domain/models"
)

// CacheHousekeeper is the admin side of the snapshot cache.
type CacheHousekeeper interface {
	Stats(ctx context.Context) models.CacheReport
	Clear(ctx context.Context) models.ClearResult
}

// WindowCounter reports live rate-limit windows.
type WindowCounter interface {
	Len() int
}

type CacheAdminUseCase struct {
	cache   CacheHousekeeper
	windows WindowCounter
}

func NewCacheAdminUseCase(cache CacheHousekeeper, windows WindowCounter) *CacheAdminUseCase {
	return &CacheAdminUseCase{cache: cache, windows: windows}
}

func (uc *CacheAdminUseCase) Stats(ctx context.Context) models.CacheReport {
	r := uc.cache.Stats(ctx)
	if uc.windows != nil {
		r.RateLimitKeys = uc.windows.Len()
	}
	return r
}

func (uc *CacheAdminUseCase) Clear(ctx context.Context) models.ClearResult {
	return uc.cache.Clear(ctx)
}
