package analytics

import (
	"math"

	"MarketMinute/internal/domain/models"
	domsvc "MarketMinute/internal/domain/service"
)

const (
	// DefaultVolatility is used when ATR or price cannot produce a usable ratio.
	DefaultVolatility = 0.02

	edgeWeight  = 70
	trendWeight = 40
	dirWeight   = 30
	confWeight  = 15

	tradeableMinScore = 35
	tradeableMinEdge  = 0.05
)

// QuantScorer turns model probabilities into a bounded 0-100 score with a regime
// label and fixed-ladder narrative. It holds no state.
type QuantScorer struct{}

func NewQuantScorer() *QuantScorer { return &QuantScorer{} }

func (QuantScorer) Score(p models.Prediction) models.EnhancedSignal {
	return Score(p)
}

var _ domsvc.SignalScorer = (*QuantScorer)(nil)

// Score is the pure scoring function.
func Score(p models.Prediction) models.EnhancedSignal {
	up, down, neutral := p.ProbUp, p.ProbDown, p.ProbNeutral

	edge := math.Abs(up - down)
	bias := up - down
	vol := volatility(p.ATR, p.CurrentPrice)
	regime := classifyRegime(neutral, edge, p.Confidence, vol)

	raw := edge*edgeWeight +
		(1-neutral)*trendWeight +
		math.Max(up, down)*dirWeight +
		p.Confidence*confWeight
	score := clampScore(raw * regimeFactor(regime))
	expectedReturn := bias * vol

	return models.EnhancedSignal{
		Prediction:            p,
		QuantScore:            score,
		Edge:                  edge,
		EdgeDirectional:       bias,
		DirectionalBias:       bias,
		DirectionalConfidence: directionalConfidence(p),
		Volatility:            vol,
		Regime:                regime,
		ExpectedReturn:        expectedReturn,
		ExpectedVolatility:    vol * (1 + edge),
		Prob1PctMove:          up + down,
		Prob2PctMove:          math.Max(0, (up+down)*0.7),
		IsTradeable:           score >= tradeableMinScore && edge > tradeableMinEdge,
		SignalDescription:     describeSignal(score, bias, expectedReturn, regime),
		TradingInterpretation: interpretSignal(score, edge, bias, vol, regime),
	}
}

// ScoreAll scores every prediction in order.
func ScoreAll(preds []models.Prediction) []models.EnhancedSignal {
	out := make([]models.EnhancedSignal, len(preds))
	for i, p := range preds {
		out[i] = Score(p)
	}
	return out
}

func volatility(atr *float64, price float64) float64 {
	if atr == nil || *atr == 0 {
		return DefaultVolatility
	}
	v := *atr / price
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return DefaultVolatility
	}
	return v
}

func directionalConfidence(p models.Prediction) float64 {
	switch p.Signal {
	case models.SignalBuy:
		return p.ProbUp
	case models.SignalSell:
		return p.ProbDown
	default:
		return p.ProbNeutral
	}
}

func clampScore(s float64) int {
	if math.IsNaN(s) {
		return 0
	}
	return int(math.Round(math.Min(100, math.Max(0, s))))
}
