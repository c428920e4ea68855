package model

// MACDPayload carries the MACD line, its signal line and the histogram.
type MACDPayload struct {
	MACD   float64 `json:"macd"`
	Signal float64 `json:"signal"`
	Hist   float64 `json:"hist"`
}

// SignalMessage is the outbound per-cycle message sent to a client after a
// successful pipeline run (candle close -> features -> inference -> decision).
// Action is nil unless an order was emitted this cycle.
type SignalMessage struct {
	Symbol     string             `json:"symbol"`
	Close      float64            `json:"close"`
	MA5        float64            `json:"ma5"`
	MA20       float64            `json:"ma20"`
	RSI        float64            `json:"rsi"`
	MACD       MACDPayload        `json:"macd"`
	Signal     string             `json:"signal"`
	Confidence float64            `json:"confidence"`
	Probs      map[string]float64 `json:"probs"`
	Action     *string            `json:"action"`
	T          int64              `json:"t"` // Unix seconds
}

// HeartbeatMessage is the liveness message sent when no market data has
// arrived within the heartbeat interval. Not a data update.
type HeartbeatMessage struct {
	Heartbeat bool   `json:"heartbeat"`
	Symbol    string `json:"symbol"`
	T         int64  `json:"t"` // Unix seconds
}
