package usecase

import (
	"context"
	"testing"

	"MarketMinute/internal/domain/models"
)

type fakeHousekeeper struct{ cleared int }

func (f *fakeHousekeeper) Stats(context.Context) models.CacheReport {
	return models.CacheReport{Backend: "memory", Entries: 4}
}

func (f *fakeHousekeeper) Clear(context.Context) models.ClearResult {
	f.cleared++
	return models.ClearResult{Success: true, TotalCleared: 4}
}

type windowCount int

func (w windowCount) Len() int { return int(w) }

func TestCacheAdminStatsIncludesRateLimitWindows(t *testing.T) {
	hk := &fakeHousekeeper{}
	uc := NewCacheAdminUseCase(hk, windowCount(7))

	r := uc.Stats(context.Background())
	if r.Backend != "memory" || r.Entries != 4 || r.RateLimitKeys != 7 {
		t.Fatalf("report = %+v", r)
	}
	if res := uc.Clear(context.Background()); !res.Success || hk.cleared != 1 {
		t.Fatalf("clear = %+v", res)
	}
}
