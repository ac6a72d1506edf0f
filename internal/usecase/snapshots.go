package usecase

import (
	"context"
	"errors"

	"MarketMinute/internal/domain/models"
	"MarketMinute/pkg/util"
)

// ErrNoSymbols is returned when a request names no usable symbol.
var ErrNoSymbols = errors.New("at least one symbol is required")

// SnapshotReader is the read side of the snapshot cache.
type SnapshotReader interface {
	GetSnapshots(ctx context.Context, symbols []string) ([]models.TickerSnapshot, models.CacheStats)
}

// SnapshotsUseCase normalizes symbol lists and reads them through the cache.
type SnapshotsUseCase struct {
	reader     SnapshotReader
	maxSymbols int
}

func NewSnapshotsUseCase(reader SnapshotReader, maxSymbols int) *SnapshotsUseCase {
	return &SnapshotsUseCase{reader: reader, maxSymbols: maxSymbols}
}

type SnapshotsResult struct {
	Symbols   []string                `json:"symbols"`
	Snapshots []models.TickerSnapshot `json:"snapshots"`
	Stats     models.CacheStats       `json:"cache"`
}

// GetSnapshots accepts a comma separated list such as "aapl, MSFT,aapl".
func (uc *SnapshotsUseCase) GetSnapshots(ctx context.Context, csv string) (*SnapshotsResult, error) {
	symbols := uc.Symbols(csv)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	snaps, stats := uc.reader.GetSnapshots(ctx, symbols)
	return &SnapshotsResult{Symbols: symbols, Snapshots: snaps, Stats: stats}, nil
}

// Symbols normalizes and caps a comma separated symbol list.
func (uc *SnapshotsUseCase) Symbols(csv string) []string {
	return util.NormalizeSymbols(util.SplitCSV(csv), uc.maxSymbols)
}
