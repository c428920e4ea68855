// Package agg builds fixed-interval OHLCV candles from a stream of trades
// or upstream kline events for a single symbol.
//
// The aggregator is owned by exactly one session and is not safe for
// concurrent use; the session pipeline runs sequentially per event.
package agg

import (
	"time"

	"signal-systemv1/internal/model"
)

// Aggregator converts trades into candles for one symbol. A candle is
// emitted only when its bucket closes — the forming candle is never exposed
// downstream.
//
// Late events (bucket older than the newest seen, or equal to a bucket
// already closed by a final kline) are dropped rather than folded in;
// OnDroppedTrade is invoked for each drop when set.
type Aggregator struct {
	symbol   string
	interval int64 // bucket width in seconds

	cur    model.Candle
	bucket int64 // highest bucket seen, valid once seen is set
	open   bool
	seen   bool

	// OnDroppedTrade is called for every late trade discarded. Optional.
	OnDroppedTrade func()
}

// New creates an aggregator for symbol with the given bucket interval.
// Intervals below one second are clamped to one second.
func New(symbol string, interval time.Duration) *Aggregator {
	sec := int64(interval / time.Second)
	if sec < 1 {
		sec = 1
	}
	return &Aggregator{symbol: symbol, interval: sec}
}

// Ingest folds a trade into the current candle. When the trade starts a new
// bucket, the previous candle is closed and returned with ok=true.
func (a *Aggregator) Ingest(t model.Trade) (closed model.Candle, ok bool) {
	bucket := (t.TimestampMs / 1000) / a.interval * a.interval

	if a.isLate(bucket) {
		if a.OnDroppedTrade != nil {
			a.OnDroppedTrade()
		}
		return model.Candle{}, false
	}

	if a.open && bucket > a.bucket {
		closed, ok = a.cur, true
		a.open = false
	}

	if !a.open {
		a.cur = model.Candle{
			Symbol:      a.symbol,
			BucketStart: bucket,
			Open:        t.Price,
			High:        t.Price,
			Low:         t.Price,
			Close:       t.Price,
			Volume:      t.Quantity,
		}
		a.bucket = bucket
		a.open = true
		a.seen = true
		return closed, ok
	}

	c := &a.cur
	if t.Price > c.High {
		c.High = t.Price
	}
	if t.Price < c.Low {
		c.Low = t.Price
	}
	c.Close = t.Price
	c.Volume += t.Quantity
	return model.Candle{}, false
}

// IngestKline replaces the forming candle with the upstream kline state.
// A final kline closes the bucket immediately; a non-final kline for a newer
// bucket closes the previous candle first (the feed skipped the final flag).
func (a *Aggregator) IngestKline(k model.Kline) (closed model.Candle, ok bool) {
	bucket := (k.StartMs / 1000) / a.interval * a.interval

	if a.isLate(bucket) {
		if a.OnDroppedTrade != nil {
			a.OnDroppedTrade()
		}
		return model.Candle{}, false
	}

	if a.open && bucket > a.bucket {
		closed, ok = a.cur, true
	}

	a.cur = model.Candle{
		Symbol:      a.symbol,
		BucketStart: bucket,
		Open:        k.Open,
		High:        k.High,
		Low:         k.Low,
		Close:       k.Close,
		Volume:      k.Volume,
	}
	a.bucket = bucket
	a.open = true
	a.seen = true

	if k.IsFinal {
		a.open = false
		return a.cur, true
	}
	return closed, ok
}

// isLate reports whether an event for bucket would rewind the candle stream.
// Once a bucket closes (final kline, or rollover to a newer bucket) nothing
// at or before it may start a new candle.
func (a *Aggregator) isLate(bucket int64) bool {
	if !a.seen {
		return false
	}
	if bucket < a.bucket {
		return true
	}
	return !a.open && bucket == a.bucket
}

// Current returns the forming candle, if any. The copy is safe to read but
// represents an unfinished bucket and must not reach the history window.
func (a *Aggregator) Current() (model.Candle, bool) {
	return a.cur, a.open
}
