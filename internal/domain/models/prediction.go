package models

import "time"

// Signal is the model's directional call.
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalNeutral Signal = "NEUTRAL"
)

// Prediction is raw model output for one ticker. Read-only input to scoring.
type Prediction struct {
	Ticker       string    `json:"ticker" validate:"required"`
	Timestamp    time.Time `json:"timestamp"`
	CurrentPrice float64   `json:"current_price"`
	Signal       Signal    `json:"signal" validate:"omitempty,oneof=BUY SELL NEUTRAL"`
	Confidence   float64   `json:"confidence" validate:"gte=0,lte=1"`
	ProbUp       float64   `json:"prob_up" validate:"gte=0,lte=1"`
	ProbNeutral  float64   `json:"prob_neutral" validate:"gte=0,lte=1"`
	ProbDown     float64   `json:"prob_down" validate:"gte=0,lte=1"`
	ShouldTrade  bool      `json:"should_trade"`
	TakeProfit   *float64  `json:"take_profit,omitempty"`
	StopLoss     *float64  `json:"stop_loss,omitempty"`
	ATR          *float64  `json:"atr,omitempty"`
	NewsCount    *int      `json:"news_count,omitempty"`
	ModelQuality string    `json:"model_quality,omitempty"`
}

// Regime labels.
const (
	RegimeLowVolChop      = "low-vol chop"
	RegimeTrending        = "trending"
	RegimeHighVolBreakout = "high-vol breakout"
	RegimeReverting       = "reverting"
	RegimeMixed           = "mixed"
)

// EnhancedSignal is a Prediction plus derived quant metrics. Built fresh on every call.
type EnhancedSignal struct {
	Prediction

	QuantScore            int     `json:"quantScore"`
	Edge                  float64 `json:"edge"`
	EdgeDirectional       float64 `json:"edgeDirectional"`
	DirectionalBias       float64 `json:"directionalBias"`
	DirectionalConfidence float64 `json:"directionalConfidence"`
	Volatility            float64 `json:"volatility"`
	Regime                string  `json:"regime"`
	ExpectedReturn        float64 `json:"expectedReturn"`
	ExpectedVolatility    float64 `json:"expectedVolatility"`
	Prob1PctMove          float64 `json:"prob1PctMove"`
	Prob2PctMove          float64 `json:"prob2PctMove"`
	IsTradeable           bool    `json:"isTradeable"`
	SignalDescription     string  `json:"signalDescription"`
	TradingInterpretation string  `json:"tradingInterpretation"`
}

// DashboardRow joins a snapshot with the scored signal for the same ticker.
// Either side may be nil.
type DashboardRow struct {
	Symbol   string          `json:"symbol"`
	Snapshot *TickerSnapshot `json:"snapshot,omitempty"`
	Signal   *EnhancedSignal `json:"signal,omitempty"`
}

// Dashboard is the combined market view. Errors is keyed by the failing half.
type Dashboard struct {
	Rows   []DashboardRow    `json:"rows"`
	Cache  CacheStats        `json:"cache"`
	Errors map[string]string `json:"errors,omitempty"`
}
