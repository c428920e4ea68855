package model

// NumClasses is the size of the classifier's output vector.
const NumClasses = 5

// Signal is the 5-way trading signal taxonomy, ordered from strong sell to
// strong buy. The integer values index the classifier's probability vector.
type Signal int

const (
	StrongSell Signal = iota
	WeakSell
	Hold
	WeakBuy
	StrongBuy
)

var signalLabels = [NumClasses]string{
	"Strong SELL",
	"Weak SELL",
	"HOLD",
	"Weak BUY",
	"Strong BUY",
}

// String returns the wire label for the signal (matches the probs keys in
// outbound messages).
func (s Signal) String() string {
	if s < 0 || int(s) >= NumClasses {
		return "UNKNOWN"
	}
	return signalLabels[s]
}

// IsBuy reports whether the signal is a buy variant.
func (s Signal) IsBuy() bool { return s == WeakBuy || s == StrongBuy }

// IsSell reports whether the signal is a sell variant.
func (s Signal) IsSell() bool { return s == StrongSell || s == WeakSell }

// SignalLabels returns the taxonomy labels in classifier order.
func SignalLabels() [NumClasses]string { return signalLabels }

// ArgMax returns the class with the highest probability and that probability.
// Ties resolve to the lowest index, matching the classifier contract.
func ArgMax(probs [NumClasses]float64) (Signal, float64) {
	best := 0
	for i := 1; i < NumClasses; i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return Signal(best), probs[best]
}
