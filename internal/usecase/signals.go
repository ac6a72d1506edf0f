package usecase

import (
	"context"
	"fmt"
	"sort"

	"MarketMinute/internal/domain/models"
	domrepo "MarketMinute/internal/domain/repository"
	domsvc "MarketMinute/internal/domain/service"
	"MarketMinute/pkg/logger"
)

// SignalsUseCase scores the latest model output and ranks it.
type SignalsUseCase struct {
	source    domrepo.PredictionSource
	scorer    domsvc.SignalScorer
	metrics   domrepo.Metrics
	freeLimit int
	l         *logger.Logger
}

func NewSignalsUseCase(source domrepo.PredictionSource, scorer domsvc.SignalScorer, metrics domrepo.Metrics, freeLimit int, l *logger.Logger) *SignalsUseCase {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &SignalsUseCase{source: source, scorer: scorer, metrics: metrics, freeLimit: freeLimit, l: l}
}

// Score scores one prediction.
func (uc *SignalsUseCase) Score(p models.Prediction) models.EnhancedSignal {
	s := uc.scorer.Score(p)
	uc.metrics.RecordSignalScored(s.Regime, s.IsTradeable)
	return s
}

// ScoreTickers loads and scores the newest prediction for each ticker.
// Tickers without a prediction are absent from the map.
func (uc *SignalsUseCase) ScoreTickers(ctx context.Context, tickers []string) (map[string]models.EnhancedSignal, error) {
	preds, err := uc.source.Latest(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	out := make(map[string]models.EnhancedSignal, len(preds))
	for _, p := range preds {
		out[p.Ticker] = uc.Score(p)
	}
	return out, nil
}

// TopSignals returns scored signals filtered by q, best first.
// Callers without a paid account get at most the free-tier number of rows.
func (uc *SignalsUseCase) TopSignals(ctx context.Context, q models.TopSignalsQuery, acc *models.Account) ([]models.EnhancedSignal, error) {
	preds, err := uc.source.Latest(ctx, q.Tickers)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}

	out := make([]models.EnhancedSignal, 0, len(preds))
	for _, p := range preds {
		if q.Signal != "" && q.Signal != "all" && string(p.Signal) != q.Signal {
			continue
		}
		s := uc.Score(p)
		if q.TradeableOnly && !s.IsTradeable {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QuantScore != out[j].QuantScore {
			return out[i].QuantScore > out[j].QuantScore
		}
		return out[i].Ticker < out[j].Ticker
	})

	limit := q.Limit
	if !acc.Paid() && uc.freeLimit > 0 && (limit <= 0 || limit > uc.freeLimit) {
		limit = uc.freeLimit
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	if uc.l != nil {
		uc.l.Debug("top signals",
			logger.Int("candidates", len(preds)),
			logger.Int("returned", len(out)),
			logger.String("signal", q.Signal),
			logger.Bool("paid", acc.Paid()))
	}
	return out, nil
}
