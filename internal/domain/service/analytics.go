package service

import (
	"MarketMinute/internal/domain/models"
)

// SignalScorer derives quant metrics from a raw prediction. Implementations must be pure.
type SignalScorer interface {
	Score(p models.Prediction) models.EnhancedSignal
}
