package repository

import (
	"context"
	"sort"
	"sync"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/domain/repository"
)

// MemoryPredictionStore keeps the newest prediction per ticker in process.
// It backs the signal endpoints when ClickHouse is disabled.
type MemoryPredictionStore struct {
	mu     sync.RWMutex
	latest map[string]models.Prediction
}

var _ repository.PredictionStore = (*MemoryPredictionStore)(nil)

func NewMemoryPredictionStore() *MemoryPredictionStore {
	return &MemoryPredictionStore{latest: make(map[string]models.Prediction)}
}

func (s *MemoryPredictionStore) Init(context.Context) error { return nil }

// StoreBatch replaces a ticker's row unless the stored one is newer.
func (s *MemoryPredictionStore) StoreBatch(_ context.Context, preds []models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range preds {
		if p.Ticker == "" {
			continue
		}
		if cur, ok := s.latest[p.Ticker]; ok && cur.Timestamp.After(p.Timestamp) {
			continue
		}
		s.latest[p.Ticker] = p
	}
	return nil
}

func (s *MemoryPredictionStore) Latest(_ context.Context, tickers []string) ([]models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Prediction
	if len(tickers) == 0 {
		out = make([]models.Prediction, 0, len(s.latest))
		for _, p := range s.latest {
			out = append(out, p)
		}
	} else {
		for _, t := range tickers {
			if p, ok := s.latest[t]; ok {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (s *MemoryPredictionStore) Health(context.Context) error { return nil }

func (s *MemoryPredictionStore) Close() error { return nil }
