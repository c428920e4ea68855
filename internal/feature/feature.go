// Package feature computes the technical-indicator vector fed to the
// classifier. All indicators are recomputed over the full retained candle
// window on each call; the window is small and bounded so there is no
// incremental state to keep consistent across reconnects.
package feature

import (
	"math"

	"github.com/markcheno/go-talib"

	"signal-systemv1/internal/model"
)

// Indicator parameters. The classifier was trained against this exact
// feature layout; changing periods or order invalidates persisted models.
const (
	RSIPeriod   = 14
	EMAFast     = 20
	EMASlow     = 50
	MACDFast    = 12
	MACDSlow    = 26
	MACDSignal  = 9
	MAShort     = 5
	MALong      = 20
	neutralRSI  = 50.0
)

// Columns lists the feature names in classifier input order.
var Columns = []string{
	"close", "rsi14", "ema20", "ema50",
	"macd", "macd_signal", "macd_diff",
	"ma5", "ma20",
}

// Vector is one fixed-order feature sample.
type Vector struct {
	Close      float64
	RSI14      float64
	EMA20      float64
	EMA50      float64
	MACD       float64
	MACDSignal float64
	MACDDiff   float64
	MA5        float64
	MA20       float64
}

// Values returns the sample in Columns order.
func (v Vector) Values() []float64 {
	return []float64{
		v.Close, v.RSI14, v.EMA20, v.EMA50,
		v.MACD, v.MACDSignal, v.MACDDiff,
		v.MA5, v.MA20,
	}
}

// Engine computes feature vectors from candle history.
type Engine struct {
	window int
}

// NewEngine creates a feature engine. The readiness window is the largest
// indicator period (EMA50).
func NewEngine() *Engine {
	return &Engine{window: EMASlow}
}

// Window returns the minimum history length required for a defined vector.
func (e *Engine) Window() int { return e.window }

// Compute derives the feature vector from the closing-price series of the
// given candles. Returns ok=false while the history is shorter than the
// readiness window; callers must suspend signal emission in that case rather
// than substitute defaults.
func (e *Engine) Compute(candles []model.Candle) (Vector, bool) {
	if len(candles) < e.window {
		return Vector{}, false
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	rsi := last(talib.Rsi(closes, RSIPeriod))
	ema20 := last(talib.Ema(closes, EMAFast))
	ema50 := last(talib.Ema(closes, EMASlow))
	macd, macdSig, macdHist := talib.Macd(closes, MACDFast, MACDSlow, MACDSignal)
	ma5 := last(talib.Sma(closes, MAShort))
	ma20 := last(talib.Sma(closes, MALong))

	v := Vector{
		Close:      closes[len(closes)-1],
		RSI14:      rsi,
		EMA20:      ema20,
		EMA50:      ema50,
		MACD:       last(macd),
		MACDSignal: last(macdSig),
		MACDDiff:   last(macdHist),
		MA5:        ma5,
		MA20:       ma20,
	}

	// RSI is undefined when the window has no price movement; substitute
	// the neutral midpoint. Any other undefined indicator means the vector
	// is not ready.
	if math.IsNaN(v.RSI14) || flat(closes[len(closes)-(RSIPeriod+1):]) {
		v.RSI14 = neutralRSI
	}
	for _, f := range v.Values() {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Vector{}, false
		}
	}
	return v, true
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func flat(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] != xs[0] {
			return false
		}
	}
	return true
}
