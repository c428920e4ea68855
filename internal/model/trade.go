package model

// Trade represents a single executed trade from the upstream market feed.
type Trade struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	TimestampMs int64   `json:"timestamp_ms"` // trade time, epoch milliseconds
}

// Kline represents a pre-aggregated candle event from feeds that publish
// klines instead of raw trades. Non-final klines update the forming candle;
// the final kline closes the bucket.
type Kline struct {
	Symbol  string  `json:"symbol"`
	StartMs int64   `json:"start_ms"` // bucket start, epoch milliseconds
	Open    float64 `json:"open"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Close   float64 `json:"close"`
	Volume  float64 `json:"volume"`
	IsFinal bool    `json:"is_final"`
}
