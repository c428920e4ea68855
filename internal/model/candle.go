package model

// Candle is a fixed-interval OHLCV candle for a single symbol.
// BucketStart is the Unix second the bucket begins at.
// Invariant: Low <= Open,Close <= High and Volume >= 0.
//
// A candle is mutated only by the aggregator that owns it while its bucket
// is current; once the bucket rolls over it is closed and never touched again.
type Candle struct {
	Symbol      string  `json:"symbol"`
	BucketStart int64   `json:"t"`
	Open        float64 `json:"o"`
	High        float64 `json:"h"`
	Low         float64 `json:"l"`
	Close       float64 `json:"c"`
	Volume      float64 `json:"v"`
}

// Valid reports whether the candle satisfies the OHLCV invariants.
func (c *Candle) Valid() bool {
	return c.Low <= c.Open && c.Low <= c.Close &&
		c.Open <= c.High && c.Close <= c.High &&
		c.Volume >= 0
}
