package analytics

import "MarketMinute/internal/domain/models"

// classifyRegime applies the first matching rule.
func classifyRegime(probNeutral, edge, confidence, volatility float64) string {
	switch {
	case probNeutral > 0.85:
		return models.RegimeLowVolChop
	case edge > 0.15 && confidence > 0.7:
		return models.RegimeTrending
	case edge > 0.1 && volatility > 0.03:
		return models.RegimeHighVolBreakout
	case edge < 0.05:
		return models.RegimeReverting
	default:
		return models.RegimeMixed
	}
}

var regimeFactors = map[string]float64{
	models.RegimeTrending:        1.08,
	models.RegimeHighVolBreakout: 1.12,
	models.RegimeLowVolChop:      0.75,
	models.RegimeReverting:       0.9,
	models.RegimeMixed:           1.0,
}

func regimeFactor(regime string) float64 {
	if f, ok := regimeFactors[regime]; ok {
		return f
	}
	return 1.0
}
