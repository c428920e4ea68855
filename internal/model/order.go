package model

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order is a simulated trading order recorded by the decision engine.
// Orders are immutable once created. IDs are assigned by the ledger,
// start at 1 and are never reused within a process lifetime.
type Order struct {
	ID         int64   `json:"id"`
	T          int64   `json:"t"` // creation time, Unix seconds
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Side       string  `json:"side"`
}
