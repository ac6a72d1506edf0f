package analytics

import (
	"fmt"
	"math"

	"MarketMinute/internal/domain/models"
)

func direction(bias float64, title bool) string {
	switch {
	case bias > 0 && title:
		return "Bullish"
	case bias > 0:
		return "bullish"
	case title:
		return "Bearish"
	default:
		return "bearish"
	}
}

func describeSignal(score int, bias, expectedReturn float64, regime string) string {
	switch {
	case score >= 70:
		return fmt.Sprintf("Strong %s Edge (+%.2f%%) - %s", direction(bias, true), math.Abs(expectedReturn)*100, regime)
	case score >= 50:
		return fmt.Sprintf("%s Bias - %s regime", direction(bias, true), regime)
	case score >= 30:
		return fmt.Sprintf("Weak %s lean - %s", direction(bias, false), regime)
	default:
		return "Neutral - " + regime
	}
}

func interpretSignal(score int, edge, bias, volatility float64, regime string) string {
	switch {
	case score >= 70 && edge > 0.15:
		return "Strong statistical edge detected - highest conviction setup."
	case score >= 60 && regime == models.RegimeTrending:
		return "Clear directional momentum - favored for trend-following strategies."
	case score >= 50 && regime == models.RegimeHighVolBreakout:
		return "Elevated volatility with directional bias - suitable for active monitoring."
	case score >= 40:
		return "Modest edge present, but requires confirmation from other analysis tools."
	case score >= 30 && volatility < 0.015:
		return fmt.Sprintf("Weak %s lean, but low volatility dampens conviction.", direction(bias, false))
	case score >= 25 && regime == models.RegimeReverting:
		return "Mean-reversion setup detected - consider waiting for clearer signals."
	case regime == models.RegimeLowVolChop:
		return "Model sees low/neutral chop - intraday traders may prefer to wait."
	case edge < 0.03:
		return "No clear edge - staying on sidelines recommended."
	default:
		return "Mixed signals with low conviction - better opportunities likely elsewhere."
	}
}
