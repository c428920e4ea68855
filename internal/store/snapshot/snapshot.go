// Package snapshot persists best-effort JSON snapshots of candle history
// (per symbol) and the simulated-order ledger. Writes are whole-file
// overwrites, rate-limited per resource with last-write-wins coalescing,
// and run on a dedicated goroutine so a slow disk never blocks the
// aggregation path.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"signal-systemv1/internal/model"
)

const (
	candlesFile = "candles.json"
	ordersFile  = "orders.json"

	// MaxCandles bounds the per-symbol candle snapshot.
	MaxCandles = 300
	// MaxOrders bounds the order snapshot.
	MaxOrders = 500
)

// Store coalesces offered snapshots and writes them on a watermark cadence.
// Offer* methods never block and never touch the disk.
type Store struct {
	dir         string
	minInterval time.Duration
	log         *slog.Logger

	mu           sync.Mutex
	candles      map[string][]model.Candle // canonical snapshot content
	candlesDirty bool
	orders       []model.Order
	ordersDirty  bool
	wroteCandles time.Time // watermarks
	wroteOrders  time.Time
}

// New creates a store writing under dir at most once per minInterval per
// resource (candles and orders are independent resources).
func New(dir string, minInterval time.Duration, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: mkdir: %w", err)
	}
	s := &Store{
		dir:         dir,
		minInterval: minInterval,
		log:         log,
		candles:     make(map[string][]model.Candle),
	}
	s.load()
	return s, nil
}

// load reads previously written snapshots; missing or corrupt files are a
// cold start, not an error.
func (s *Store) load() {
	if data, err := os.ReadFile(filepath.Join(s.dir, candlesFile)); err == nil {
		if err := json.Unmarshal(data, &s.candles); err != nil {
			s.log.Warn("discarding unreadable candle snapshot", "err", err)
			s.candles = make(map[string][]model.Candle)
		}
	}
	if data, err := os.ReadFile(filepath.Join(s.dir, ordersFile)); err == nil {
		if err := json.Unmarshal(data, &s.orders); err != nil {
			s.log.Warn("discarding unreadable order snapshot", "err", err)
			s.orders = nil
		}
	}
	s.log.Info("snapshots loaded",
		"symbols", len(s.candles), "orders", len(s.orders))
}

// Candles returns the loaded/offered candle snapshot for a symbol.
func (s *Store) Candles(symbol string) []model.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.candles[symbol]
	cp := make([]model.Candle, len(cs))
	copy(cp, cs)
	return cp
}

// Orders returns the loaded/offered order snapshot.
func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]model.Order, len(s.orders))
	copy(cp, s.orders)
	return cp
}

// OfferCandles replaces the pending candle snapshot for a symbol. Only the
// most recent MaxCandles entries are retained. Last write wins within a
// rate-limit window.
func (s *Store) OfferCandles(symbol string, cs []model.Candle) {
	if over := len(cs) - MaxCandles; over > 0 {
		cs = cs[over:]
	}
	cp := make([]model.Candle, len(cs))
	copy(cp, cs)

	s.mu.Lock()
	s.candles[symbol] = cp
	s.candlesDirty = true
	s.mu.Unlock()
}

// OfferOrders replaces the pending order snapshot. Only the most recent
// MaxOrders entries are retained.
func (s *Store) OfferOrders(os []model.Order) {
	if over := len(os) - MaxOrders; over > 0 {
		os = os[over:]
	}
	cp := make([]model.Order, len(os))
	copy(cp, os)

	s.mu.Lock()
	s.orders = cp
	s.ordersDirty = true
	s.mu.Unlock()
}

// Run drives the watermark loop until ctx is cancelled, then flushes any
// pending state regardless of the rate limit.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.writeDue(time.Now())
		}
	}
}

// Flush writes all dirty resources immediately. Used at shutdown.
func (s *Store) Flush() {
	s.writeDue(time.Time{})
}

// writeDue writes each dirty resource whose watermark has expired. A zero
// now forces the write.
func (s *Store) writeDue(now time.Time) {
	force := now.IsZero()

	s.mu.Lock()
	doCandles := s.candlesDirty && (force || now.Sub(s.wroteCandles) >= s.minInterval)
	doOrders := s.ordersDirty && (force || now.Sub(s.wroteOrders) >= s.minInterval)

	var candlesCopy map[string][]model.Candle
	var ordersCopy []model.Order
	if doCandles {
		candlesCopy = make(map[string][]model.Candle, len(s.candles))
		for k, v := range s.candles {
			candlesCopy[k] = v
		}
		s.candlesDirty = false
		s.wroteCandles = now
		if force {
			s.wroteCandles = time.Now()
		}
	}
	if doOrders {
		ordersCopy = append(ordersCopy, s.orders...)
		s.ordersDirty = false
		s.wroteOrders = now
		if force {
			s.wroteOrders = time.Now()
		}
	}
	s.mu.Unlock()

	// Disk I/O happens outside the lock.
	if doCandles {
		if err := s.writeFile(candlesFile, candlesCopy); err != nil {
			s.log.Warn("candle snapshot write failed", "err", err)
		}
	}
	if doOrders {
		if ordersCopy == nil {
			ordersCopy = []model.Order{}
		}
		if err := s.writeFile(ordersFile, ordersCopy); err != nil {
			s.log.Warn("order snapshot write failed", "err", err)
		}
	}
}

// writeFile overwrites the snapshot atomically via a temp file rename.
func (s *Store) writeFile(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", name, err)
	}
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("snapshot: rename %s: %w", name, err)
	}
	return nil
}
