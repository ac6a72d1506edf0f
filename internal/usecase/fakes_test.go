package usecase

import (
	"context"
	"sync"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/services/analytics"
)

type fakeReader struct {
	known map[string]models.TickerSnapshot
	calls [][]string
}

func (f *fakeReader) GetSnapshots(_ context.Context, symbols []string) ([]models.TickerSnapshot, models.CacheStats) {
	f.calls = append(f.calls, symbols)
	var out []models.TickerSnapshot
	for _, s := range symbols {
		if snap, ok := f.known[s]; ok {
			out = append(out, snap)
		}
	}
	return out, models.CacheStats{Misses: len(symbols), Total: len(symbols)}
}

type fakeSource struct {
	preds []models.Prediction
	err   error
}

func (f *fakeSource) Latest(_ context.Context, tickers []string) ([]models.Prediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(tickers) == 0 {
		return f.preds, nil
	}
	want := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		want[t] = true
	}
	var out []models.Prediction
	for _, p := range f.preds {
		if want[p.Ticker] {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeStore struct {
	fakeSource
	mu      sync.Mutex
	batches [][]models.Prediction
	err     error
}

func (f *fakeStore) Init(context.Context) error   { return nil }
func (f *fakeStore) Health(context.Context) error { return nil }
func (f *fakeStore) Close() error                 { return nil }

func (f *fakeStore) StoreBatch(_ context.Context, preds []models.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, preds)
	return nil
}

func pred(ticker string, signal models.Signal, up, neutral, down, conf float64) models.Prediction {
	return models.Prediction{
		Ticker: ticker, Signal: signal, CurrentPrice: 100,
		ProbUp: up, ProbNeutral: neutral, ProbDown: down, Confidence: conf,
	}
}

func newSignals(src *fakeSource, freeLimit int) *SignalsUseCase {
	return NewSignalsUseCase(src, analytics.NewQuantScorer(), nil, freeLimit, nil)
}
