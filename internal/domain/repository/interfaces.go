package repository

import (
	"context"

	"MarketMinute/internal/domain/models"
)

// SnapshotProvider is the upstream market-data API. Symbols it cannot
// resolve are omitted from the result rather than failing the call.
type SnapshotProvider interface {
	FetchSnapshots(ctx context.Context, symbols []string) ([]models.TickerSnapshot, error)
}

// PredictionSource serves the newest model output per ticker.
// An empty ticker list means every ticker.
type PredictionSource interface {
	Latest(ctx context.Context, tickers []string) ([]models.Prediction, error)
}

// PredictionStore persists model output delivered out-of-band.
type PredictionStore interface {
	PredictionSource
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, preds []models.Prediction) error
	Health(ctx context.Context) error
	Close() error
}

// AccountStore resolves account rows by identity. A missing account is (nil, nil).
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

type Metrics interface {
	RecordCacheLookup(hits, misses int)
	RecordUpstreamFetch(provider string, symbols int, seconds float64, err error)
	RecordFallback(op string)
	RecordRateLimit(operation string, allowed bool)
	RecordSignalScored(regime string, tradeable bool)
	RecordIngest(records int, err error)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordCacheLookup(int, int)                      {}
func (NopMetrics) RecordUpstreamFetch(string, int, float64, error) {}
func (NopMetrics) RecordFallback(string)                           {}
func (NopMetrics) RecordRateLimit(string, bool)                    {}
func (NopMetrics) RecordSignalScored(string, bool)                 {}
func (NopMetrics) RecordIngest(int, error)                         {}

var _ Metrics = NopMetrics{}
