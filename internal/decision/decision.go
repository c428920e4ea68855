// Package decision converts classifier probabilities into a discrete signal
// and, when the confidence policy fires, a simulated order.
package decision

import (
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/orders"
)

// DefaultThreshold is the strictly-greater confidence gate for emitting an
// order.
const DefaultThreshold = 0.55

// Decision is the outcome of one pipeline cycle.
type Decision struct {
	Signal     model.Signal
	Confidence float64
	Probs      [model.NumClasses]float64
	Order      *model.Order // nil unless the policy fired
}

// Engine applies the signal/confidence policy and records fired orders in
// the shared ledger.
type Engine struct {
	threshold float64
	ledger    *orders.Ledger
}

// NewEngine creates a decision engine. threshold <= 0 selects
// DefaultThreshold.
func NewEngine(threshold float64, ledger *orders.Ledger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold, ledger: ledger}
}

// Decide picks the argmax signal and emits an order iff the signal is
// directional (not Hold) and confidence strictly exceeds the threshold.
// Hold never produces an order, regardless of confidence.
func (e *Engine) Decide(probs [model.NumClasses]float64, symbol string, price float64, ts int64) Decision {
	sig, conf := model.ArgMax(probs)
	d := Decision{Signal: sig, Confidence: conf, Probs: probs}

	if sig == model.Hold || conf <= e.threshold {
		return d
	}

	o := e.ledger.Append(symbol, price, sig, conf, ts)
	d.Order = &o
	return d
}
