package snapshot

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"signal-systemv1/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func makeCandles(n int) []model.Candle {
	cs := make([]model.Candle, n)
	for i := range cs {
		cs[i] = model.Candle{Symbol: "BTCUSDT", BucketStart: int64(i), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
	}
	return cs
}

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, time.Minute, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	s.OfferCandles("BTCUSDT", makeCandles(10))
	s.OfferOrders([]model.Order{{ID: 1, Symbol: "BTCUSDT", Side: model.SideBuy}})
	s.Flush()

	// A fresh store over the same dir sees the persisted state.
	s2, err := New(dir, time.Minute, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got := s2.Candles("BTCUSDT"); len(got) != 10 {
		t.Errorf("reloaded candles = %d, want 10", len(got))
	}
	if got := s2.Orders(); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("reloaded orders = %+v", got)
	}
}

func TestStore_TrimsToRetention(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, time.Minute, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	s.OfferCandles("BTCUSDT", makeCandles(MaxCandles+50))
	if got := s.Candles("BTCUSDT"); len(got) != MaxCandles {
		t.Errorf("candle snapshot = %d, want %d", len(got), MaxCandles)
	}
	// Most recent entries kept.
	got := s.Candles("BTCUSDT")
	if got[len(got)-1].BucketStart != int64(MaxCandles+49) {
		t.Errorf("newest retained = %d", got[len(got)-1].BucketStart)
	}

	orders := make([]model.Order, MaxOrders+10)
	for i := range orders {
		orders[i] = model.Order{ID: int64(i + 1)}
	}
	s.OfferOrders(orders)
	if got := s.Orders(); len(got) != MaxOrders || got[0].ID != 11 {
		t.Errorf("order snapshot len=%d first=%d, want %d/11", len(got), got[0].ID, MaxOrders)
	}
}

func TestStore_RateLimitCoalesces(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, time.Hour, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	// First write is due immediately (zero watermark).
	s.OfferCandles("BTCUSDT", makeCandles(1))
	s.writeDue(time.Now())

	path := filepath.Join(dir, candlesFile)
	st1, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	// Within the window: offers coalesce, no write happens.
	s.OfferCandles("BTCUSDT", makeCandles(2))
	s.OfferCandles("BTCUSDT", makeCandles(3))
	s.writeDue(time.Now())
	st2, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st2.ModTime() != st1.ModTime() || st2.Size() != st1.Size() {
		t.Error("snapshot written inside the rate-limit window")
	}

	// Past the window: the last offer wins.
	s.writeDue(time.Now().Add(2 * time.Hour))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string][]model.Candle
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m["BTCUSDT"]) != 3 {
		t.Errorf("persisted candles = %d, want 3 (last write wins)", len(m["BTCUSDT"]))
	}
}

func TestStore_CleanWithoutDirtyState(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, time.Minute, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	s.Flush()
	if _, err := os.Stat(filepath.Join(dir, candlesFile)); !os.IsNotExist(err) {
		t.Error("flush with no offers created a candle snapshot")
	}
	if _, err := os.Stat(filepath.Join(dir, ordersFile)); !os.IsNotExist(err) {
		t.Error("flush with no offers created an order snapshot")
	}
}

func TestStore_CorruptFilesAreColdStart(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, candlesFile), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(dir, time.Minute, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Candles("BTCUSDT"); len(got) != 0 {
		t.Errorf("corrupt snapshot produced candles: %v", got)
	}
}
