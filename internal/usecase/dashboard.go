package usecase

import (
	"context"
	"sync"
	"time"

	"MarketMinute/internal/domain/models"
	"MarketMinute/pkg/logger"
)

// DashboardUseCase joins cached snapshots with scored signals.
type DashboardUseCase struct {
	snapshots *SnapshotsUseCase
	signals   *SignalsUseCase
	timeout   time.Duration
	l         *logger.Logger
}

func NewDashboardUseCase(snapshots *SnapshotsUseCase, signals *SignalsUseCase, timeout time.Duration, l *logger.Logger) *DashboardUseCase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DashboardUseCase{snapshots: snapshots, signals: signals, timeout: timeout, l: l}
}

// Build fetches both halves concurrently. A failing half is reported in
// Errors while the other half is still returned.
func (uc *DashboardUseCase) Build(ctx context.Context, csv string) (*models.Dashboard, error) {
	symbols := uc.snapshots.Symbols(csv)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		snaps   []models.TickerSnapshot
		stats   models.CacheStats
		signals map[string]models.EnhancedSignal
		sigErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snaps, stats = uc.snapshots.reader.GetSnapshots(ctx, symbols)
	}()
	go func() {
		defer wg.Done()
		signals, sigErr = uc.signals.ScoreTickers(ctx, symbols)
	}()
	wg.Wait()

	res := &models.Dashboard{
		Rows:   make([]models.DashboardRow, 0, len(symbols)),
		Cache:  stats,
		Errors: map[string]string{},
	}
	if sigErr != nil {
		res.Errors["signals"] = sigErr.Error()
		if uc.l != nil {
			uc.l.Error("dashboard signals", logger.Strings("symbols", symbols), logger.Error(sigErr))
		}
	}
	if len(snaps) < len(symbols) && stats.Misses > 0 {
		res.Errors["snapshots"] = "some symbols could not be refreshed"
	}

	bySymbol := make(map[string]models.TickerSnapshot, len(snaps))
	for _, s := range snaps {
		bySymbol[s.Symbol] = s
	}
	for _, sym := range symbols {
		row := models.DashboardRow{Symbol: sym}
		if s, ok := bySymbol[sym]; ok {
			s := s
			row.Snapshot = &s
		}
		if sig, ok := signals[sym]; ok {
			sig := sig
			row.Signal = &sig
		}
		res.Rows = append(res.Rows, row)
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
