package analytics

import (
	"math"
	"reflect"
	"testing"

	"MarketMinute/internal/domain/models"
)

func f64(v float64) *float64 { return &v }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreTrendingScenario(t *testing.T) {
	s := Score(models.Prediction{
		Ticker:       "AAPL",
		CurrentPrice: 100,
		Signal:       models.SignalBuy,
		ProbUp:       0.6,
		ProbDown:     0.2,
		ProbNeutral:  0.2,
		Confidence:   0.8,
		ATR:          f64(2),
	})

	if !approx(s.Edge, 0.4) || !approx(s.EdgeDirectional, 0.4) {
		t.Fatalf("edge = %v / %v", s.Edge, s.EdgeDirectional)
	}
	if s.Regime != models.RegimeTrending {
		t.Fatalf("regime = %q", s.Regime)
	}
	// (0.4*70 + 0.8*40 + 0.6*30 + 0.8*15) * 1.08 = 97.2
	if s.QuantScore != 97 {
		t.Fatalf("quantScore = %d, want 97", s.QuantScore)
	}
	if !s.IsTradeable {
		t.Fatalf("expected tradeable")
	}
	if !approx(s.Volatility, 0.02) || !approx(s.ExpectedReturn, 0.008) || !approx(s.ExpectedVolatility, 0.028) {
		t.Fatalf("vol=%v er=%v ev=%v", s.Volatility, s.ExpectedReturn, s.ExpectedVolatility)
	}
	if !approx(s.Prob1PctMove, 0.8) || !approx(s.Prob2PctMove, 0.56) || s.DirectionalConfidence != 0.6 {
		t.Fatalf("p1=%v p2=%v dc=%v", s.Prob1PctMove, s.Prob2PctMove, s.DirectionalConfidence)
	}
	if s.SignalDescription != "Strong Bullish Edge (+0.80%) - trending" {
		t.Fatalf("description = %q", s.SignalDescription)
	}
	if s.TradingInterpretation != "Strong statistical edge detected - highest conviction setup." {
		t.Fatalf("interpretation = %q", s.TradingInterpretation)
	}
	if s.Ticker != "AAPL" {
		t.Fatalf("prediction fields must pass through")
	}
}

func TestScoreLowVolChop(t *testing.T) {
	s := Score(models.Prediction{
		CurrentPrice: 50,
		ProbUp:       0.05,
		ProbDown:     0.05,
		ProbNeutral:  0.9,
		Confidence:   0.5,
	})
	if s.Regime != models.RegimeLowVolChop {
		t.Fatalf("regime = %q", s.Regime)
	}
	// (0 + 0.1*40 + 0.05*30 + 0.5*15) * 0.75 = 9.75
	if s.QuantScore != 10 {
		t.Fatalf("quantScore = %d, want 10", s.QuantScore)
	}
	if s.IsTradeable {
		t.Fatalf("chop must not be tradeable")
	}
	if s.SignalDescription != "Neutral - low-vol chop" {
		t.Fatalf("description = %q", s.SignalDescription)
	}
	if s.TradingInterpretation != "Model sees low/neutral chop - intraday traders may prefer to wait." {
		t.Fatalf("interpretation = %q", s.TradingInterpretation)
	}

	// Chop wins over every later rule.
	s = Score(models.Prediction{
		CurrentPrice: 100,
		ATR:          f64(10),
		ProbUp:       0.1,
		ProbNeutral:  0.9,
		Confidence:   0.95,
	})
	if s.Regime != models.RegimeLowVolChop {
		t.Fatalf("regime = %q", s.Regime)
	}
	// (0.1*70 + 0.1*40 + 0.1*30 + 0.95*15) * 0.75 = 21.1875
	if s.QuantScore != 21 {
		t.Fatalf("quantScore = %d, want 21", s.QuantScore)
	}
}

func TestScoreRegimeLadder(t *testing.T) {
	cases := []struct {
		name      string
		p         models.Prediction
		regime    string
		score     int
		tradeable bool
		desc      string
		interp    string
	}{
		{
			name:      "breakout",
			p:         models.Prediction{CurrentPrice: 100, ATR: f64(4), ProbUp: 0.5, ProbDown: 0.38, ProbNeutral: 0.12, Confidence: 0.5},
			regime:    models.RegimeHighVolBreakout,
			score:     74,
			tradeable: true,
			desc:      "Strong Bullish Edge (+0.48%) - high-vol breakout",
			interp:    "Elevated volatility with directional bias - suitable for active monitoring.",
		},
		{
			name:      "reverting",
			p:         models.Prediction{CurrentPrice: 100, ProbUp: 0.35, ProbDown: 0.33, ProbNeutral: 0.32, Confidence: 0.4},
			regime:    models.RegimeReverting,
			score:     41,
			tradeable: false,
			desc:      "Weak bullish lean - reverting",
			interp:    "Modest edge present, but requires confirmation from other analysis tools.",
		},
		{
			name:      "mixed",
			p:         models.Prediction{CurrentPrice: 100, ProbUp: 0.45, ProbDown: 0.37, ProbNeutral: 0.18, Confidence: 0.6},
			regime:    models.RegimeMixed,
			score:     61,
			tradeable: true,
			desc:      "Bullish Bias - mixed regime",
			interp:    "Modest edge present, but requires confirmation from other analysis tools.",
		},
		{
			name:      "bearish trend clamps",
			p:         models.Prediction{CurrentPrice: 100, ATR: f64(3), Signal: models.SignalSell, ProbUp: 0.1, ProbDown: 0.7, ProbNeutral: 0.2, Confidence: 0.9},
			regime:    models.RegimeTrending,
			score:     100,
			tradeable: true,
			desc:      "Strong Bearish Edge (+1.80%) - trending",
			interp:    "Strong statistical edge detected - highest conviction setup.",
		},
	}
	for _, c := range cases {
		s := Score(c.p)
		if s.Regime != c.regime || s.QuantScore != c.score || s.IsTradeable != c.tradeable {
			t.Fatalf("%s: got regime=%q score=%d tradeable=%v", c.name, s.Regime, s.QuantScore, s.IsTradeable)
		}
		if s.SignalDescription != c.desc {
			t.Fatalf("%s: description = %q", c.name, s.SignalDescription)
		}
		if s.TradingInterpretation != c.interp {
			t.Fatalf("%s: interpretation = %q", c.name, s.TradingInterpretation)
		}
	}
}

func TestVolatilityFallback(t *testing.T) {
	cases := []struct {
		name  string
		atr   *float64
		price float64
		want  float64
	}{
		{"absent", nil, 100, DefaultVolatility},
		{"zero", f64(0), 100, DefaultVolatility},
		{"negative price", f64(2), -5, DefaultVolatility},
		{"zero price", f64(2), 0, DefaultVolatility},
		{"normal", f64(5), 100, 0.05},
	}
	for _, c := range cases {
		if got := volatility(c.atr, c.price); !approx(got, c.want) {
			t.Fatalf("%s: volatility = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDirectionalConfidence(t *testing.T) {
	p := models.Prediction{ProbUp: 0.5, ProbDown: 0.3, ProbNeutral: 0.2}
	for sig, want := range map[models.Signal]float64{
		models.SignalBuy:     0.5,
		models.SignalSell:    0.3,
		models.SignalNeutral: 0.2,
		"":                   0.2,
	} {
		p.Signal = sig
		if got := Score(p).DirectionalConfidence; got != want {
			t.Fatalf("%q: directionalConfidence = %v, want %v", sig, got, want)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	atrs := []*float64{nil, f64(0.5), f64(5), f64(50)}
	for up := 0; up <= 20; up++ {
		for down := 0; up+down <= 20; down++ {
			pu, pd := float64(up)/20, float64(down)/20
			pn := 1 - pu - pd
			for c := 0; c <= 4; c++ {
				for _, atr := range atrs {
					s := Score(models.Prediction{
						CurrentPrice: 100, ATR: atr,
						ProbUp: pu, ProbDown: pd, ProbNeutral: pn,
						Confidence: float64(c) / 4,
					})
					if s.QuantScore < 0 || s.QuantScore > 100 {
						t.Fatalf("score %d out of bounds for up=%v down=%v", s.QuantScore, pu, pd)
					}
				}
			}
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	p := models.Prediction{
		Ticker: "MSFT", CurrentPrice: 412.3, ATR: f64(6.1), Signal: models.SignalBuy,
		ProbUp: 0.41, ProbDown: 0.22, ProbNeutral: 0.37, Confidence: 0.66,
	}
	a, b := Score(p), NewQuantScorer().Score(p)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("non-deterministic score:\n%+v\n%+v", a, b)
	}
}

func TestScoreNaNInput(t *testing.T) {
	s := Score(models.Prediction{CurrentPrice: 10, ProbUp: math.NaN(), ProbDown: 0.1, ProbNeutral: 0.1})
	if s.QuantScore != 0 {
		t.Fatalf("NaN input should score 0, got %d", s.QuantScore)
	}
}

func TestScoreAll(t *testing.T) {
	preds := []models.Prediction{{Ticker: "A", ProbNeutral: 1}, {Ticker: "B", ProbUp: 1}}
	out := ScoreAll(preds)
	if len(out) != 2 || out[0].Ticker != "A" || out[1].Ticker != "B" {
		t.Fatalf("unexpected order %+v", out)
	}
}
