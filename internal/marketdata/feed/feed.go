// Package feed defines the upstream market-feed contract consumed by
// sessions. Adapters normalize exchange-specific payloads into Event values;
// reconnecting toward the exchange is the session's concern, surfaced here
// only as "next event or error".
package feed

import (
	"context"
	"errors"

	"signal-systemv1/internal/model"
)

// ErrClosed is reported when a stream ends without an upstream error.
var ErrClosed = errors.New("feed: stream closed")

// Event is one normalized upstream event. Exactly one field is set; an
// event with neither is malformed and skipped by the consumer.
type Event struct {
	Trade *model.Trade
	Kline *model.Kline
}

// Stream is a live subscription for one symbol. Close is idempotent and
// releases the underlying connection.
type Stream interface {
	Events() <-chan Event
	Errs() <-chan error
	Close()
}

// Feed opens subscriptions and serves one-shot historical fetches used to
// bootstrap a session's candle history.
type Feed interface {
	Subscribe(ctx context.Context, symbol string) (Stream, error)
	RecentCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error)
}
