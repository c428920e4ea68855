package history

import (
	"testing"

	"signal-systemv1/internal/model"
)

func candle(t int64) model.Candle {
	return model.Candle{Symbol: "BTCUSDT", BucketStart: t, Open: 1, High: 1, Low: 1, Close: float64(t), Volume: 1}
}

func TestWindow_AppendAndOrder(t *testing.T) {
	w := New(5)
	for i := int64(0); i < 3; i++ {
		w.Append(candle(i))
	}
	if w.Len() != 3 {
		t.Fatalf("len = %d, want 3", w.Len())
	}
	cs := w.Candles()
	for i, c := range cs {
		if c.BucketStart != int64(i) {
			t.Errorf("index %d: bucket = %d, want %d", i, c.BucketStart, i)
		}
	}
}

func TestWindow_EvictsOldestExactly(t *testing.T) {
	const capacity = 4
	w := New(capacity)

	// capacity+1 inserts: the first candle must be gone, order preserved.
	for i := int64(0); i <= capacity; i++ {
		w.Append(candle(i))
	}
	if w.Len() != capacity {
		t.Fatalf("len = %d, want %d", w.Len(), capacity)
	}
	cs := w.Candles()
	if cs[0].BucketStart != 1 {
		t.Errorf("oldest = %d, want 1 (candle 0 evicted)", cs[0].BucketStart)
	}
	if cs[capacity-1].BucketStart != capacity {
		t.Errorf("newest = %d, want %d", cs[capacity-1].BucketStart, capacity)
	}
	for _, c := range cs {
		if c.BucketStart == 0 {
			t.Error("evicted candle still present")
		}
	}
}

func TestWindow_NeverExceedsCapacity(t *testing.T) {
	w := New(8)
	for i := int64(0); i < 100; i++ {
		w.Append(candle(i))
		if w.Len() > w.Cap() {
			t.Fatalf("len %d exceeds cap %d", w.Len(), w.Cap())
		}
	}
	if last, ok := w.Last(); !ok || last.BucketStart != 99 {
		t.Errorf("last = %v ok=%v, want bucket 99", last.BucketStart, ok)
	}
}

func TestWindow_Seed(t *testing.T) {
	w := New(3)
	var cs []model.Candle
	for i := int64(0); i < 10; i++ {
		cs = append(cs, candle(i))
	}
	w.Seed(cs)
	if w.Len() != 3 {
		t.Fatalf("len = %d, want 3", w.Len())
	}
	got := w.Candles()
	if got[0].BucketStart != 7 || got[2].BucketStart != 9 {
		t.Errorf("seed kept wrong tail: %v..%v", got[0].BucketStart, got[2].BucketStart)
	}

	// Seeding again resets, not appends.
	w.Seed(cs[:2])
	if w.Len() != 2 {
		t.Fatalf("re-seed len = %d, want 2", w.Len())
	}
}

func TestWindow_Closes(t *testing.T) {
	w := New(4)
	for i := int64(0); i < 6; i++ {
		w.Append(candle(i))
	}
	closes := w.Closes()
	want := []float64{2, 3, 4, 5}
	for i := range want {
		if closes[i] != want[i] {
			t.Errorf("closes[%d] = %v, want %v", i, closes[i], want[i])
		}
	}
}
