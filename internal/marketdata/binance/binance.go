// Package binance adapts the Binance spot market streams to the feed
// contract: trade or kline WebSocket events in, normalized feed.Event out,
// plus a one-shot klines fetch for history bootstrap.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	gobinance "github.com/adshao/go-binance/v2"

	"signal-systemv1/internal/marketdata/feed"
	"signal-systemv1/internal/model"
)

// Config selects the upstream stream shape.
type Config struct {
	APIKey    string
	APISecret string
	// UseKlines subscribes to the kline stream instead of raw trades.
	UseKlines bool
	// Interval is the kline interval for subscriptions and seed fetches.
	Interval string
}

// Feed implements feed.Feed against Binance spot.
type Feed struct {
	cfg    Config
	client *gobinance.Client
	log    *slog.Logger
}

// New creates a Binance feed adapter. Credentials are optional; public
// market streams and klines need none.
func New(cfg Config, log *slog.Logger) *Feed {
	if cfg.Interval == "" {
		cfg.Interval = "1s"
	}
	return &Feed{
		cfg:    cfg,
		client: gobinance.NewClient(cfg.APIKey, cfg.APISecret),
		log:    log.With("feed", "binance"),
	}
}

// Subscribe opens the trade (or kline) stream for one symbol. The returned
// stream ends with an error on the Errs channel when the upstream socket
// fails; the caller owns reconnecting.
func (f *Feed) Subscribe(ctx context.Context, symbol string) (feed.Stream, error) {
	st := &stream{
		events: make(chan feed.Event, 1024),
		errs:   make(chan error, 1),
	}

	errHandler := func(err error) {
		select {
		case st.errs <- err:
		default:
		}
	}

	var stopC chan struct{}
	var err error
	if f.cfg.UseKlines {
		_, stopC, err = gobinance.WsKlineServe(symbol, f.cfg.Interval, f.klineHandler(st), errHandler)
	} else {
		_, stopC, err = gobinance.WsTradeServe(symbol, f.tradeHandler(st), errHandler)
	}
	if err != nil {
		return nil, fmt.Errorf("binance: subscribe %s: %w", symbol, err)
	}
	st.stop = stopC

	f.log.Info("subscribed", "symbol", symbol, "klines", f.cfg.UseKlines)
	return st, nil
}

func (f *Feed) tradeHandler(st *stream) gobinance.WsTradeHandler {
	return func(ev *gobinance.WsTradeEvent) {
		price, err1 := strconv.ParseFloat(ev.Price, 64)
		qty, err2 := strconv.ParseFloat(ev.Quantity, 64)
		if err1 != nil || err2 != nil || price <= 0 {
			// Malformed event: skip it, the stream continues.
			f.log.Debug("skipping malformed trade", "symbol", ev.Symbol)
			return
		}
		t := model.Trade{
			Symbol:      ev.Symbol,
			Price:       price,
			Quantity:    qty,
			TimestampMs: ev.TradeTime,
		}
		select {
		case st.events <- feed.Event{Trade: &t}:
		default:
			f.log.Warn("event buffer full, dropping trade", "symbol", ev.Symbol)
		}
	}
}

func (f *Feed) klineHandler(st *stream) gobinance.WsKlineHandler {
	return func(ev *gobinance.WsKlineEvent) {
		k, err := parseKline(ev)
		if err != nil {
			f.log.Debug("skipping malformed kline", "symbol", ev.Symbol, "err", err)
			return
		}
		select {
		case st.events <- feed.Event{Kline: &k}:
		default:
			f.log.Warn("event buffer full, dropping kline", "symbol", ev.Symbol)
		}
	}
}

func parseKline(ev *gobinance.WsKlineEvent) (model.Kline, error) {
	o, err := strconv.ParseFloat(ev.Kline.Open, 64)
	if err != nil {
		return model.Kline{}, fmt.Errorf("open: %w", err)
	}
	h, err := strconv.ParseFloat(ev.Kline.High, 64)
	if err != nil {
		return model.Kline{}, fmt.Errorf("high: %w", err)
	}
	l, err := strconv.ParseFloat(ev.Kline.Low, 64)
	if err != nil {
		return model.Kline{}, fmt.Errorf("low: %w", err)
	}
	c, err := strconv.ParseFloat(ev.Kline.Close, 64)
	if err != nil {
		return model.Kline{}, fmt.Errorf("close: %w", err)
	}
	v, err := strconv.ParseFloat(ev.Kline.Volume, 64)
	if err != nil {
		return model.Kline{}, fmt.Errorf("volume: %w", err)
	}
	return model.Kline{
		Symbol:  ev.Symbol,
		StartMs: ev.Kline.StartTime,
		Open:    o,
		High:    h,
		Low:     l,
		Close:   c,
		Volume:  v,
		IsFinal: ev.Kline.IsFinal,
	}, nil
}

// RecentCandles fetches the most recent closed klines for seeding history.
func (f *Feed) RecentCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	klines, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(f.cfg.Interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
	}

	out := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		o, err1 := strconv.ParseFloat(k.Open, 64)
		h, err2 := strconv.ParseFloat(k.High, 64)
		l, err3 := strconv.ParseFloat(k.Low, 64)
		c, err4 := strconv.ParseFloat(k.Close, 64)
		v, err5 := strconv.ParseFloat(k.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		out = append(out, model.Candle{
			Symbol:      symbol,
			BucketStart: k.OpenTime / 1000,
			Open:        o,
			High:        h,
			Low:         l,
			Close:       c,
			Volume:      v,
		})
	}
	return out, nil
}

type stream struct {
	events chan feed.Event
	errs   chan error
	stop   chan struct{}
	once   sync.Once
}

func (s *stream) Events() <-chan feed.Event { return s.events }
func (s *stream) Errs() <-chan error        { return s.errs }

// Close stops the underlying WebSocket. Idempotent.
func (s *stream) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			close(s.stop)
		}
	})
}
