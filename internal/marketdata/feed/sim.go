package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"signal-systemv1/internal/model"
)

// Sim is a synthetic feed for staging runs: a random-walk trade stream with
// no external dependency. It implements Feed.
type Sim struct {
	base float64       // starting price
	step float64       // max absolute price move per trade
	rate time.Duration // time between trades
}

// NewSim creates a simulated feed around the given base price.
func NewSim(base, step float64, rate time.Duration) *Sim {
	if rate <= 0 {
		rate = 100 * time.Millisecond
	}
	return &Sim{base: base, step: step, rate: rate}
}

// Subscribe starts a generator goroutine emitting trades until the stream
// is closed or ctx is cancelled.
func (s *Sim) Subscribe(ctx context.Context, symbol string) (Stream, error) {
	st := &simStream{
		events: make(chan Event, 256),
		errs:   make(chan error, 1),
		stop:   make(chan struct{}),
	}

	go func() {
		defer close(st.events)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		price := s.base
		ticker := time.NewTicker(s.rate)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-st.stop:
				return
			case <-ticker.C:
				price += (rng.Float64()*2 - 1) * s.step
				if price <= 0 {
					price = s.base
				}
				t := model.Trade{
					Symbol:      symbol,
					Price:       price,
					Quantity:    rng.Float64(),
					TimestampMs: time.Now().UnixMilli(),
				}
				select {
				case st.events <- Event{Trade: &t}:
				default:
				}
			}
		}
	}()

	return st, nil
}

// RecentCandles synthesizes a flat-walk seed history ending at the base
// price, one candle per second.
func (s *Sim) RecentCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	now := time.Now().Unix()
	rng := rand.New(rand.NewSource(now))
	out := make([]model.Candle, limit)
	price := s.base
	for i := limit - 1; i >= 0; i-- {
		out[i] = model.Candle{
			Symbol:      symbol,
			BucketStart: now - int64(limit-i),
			Open:        price,
			High:        price + s.step/2,
			Low:         price - s.step/2,
			Close:       price,
			Volume:      rng.Float64() * 10,
		}
		price -= (rng.Float64()*2 - 1) * s.step
	}
	return out, nil
}

type simStream struct {
	events chan Event
	errs   chan error
	stop   chan struct{}
	once   sync.Once
}

func (s *simStream) Events() <-chan Event { return s.events }
func (s *simStream) Errs() <-chan error   { return s.errs }
func (s *simStream) Close()               { s.once.Do(func() { close(s.stop) }) }
