// Package history provides a capacity-bounded sliding window of closed
// candles for one symbol, oldest-first. Appending beyond capacity evicts the
// oldest entry. Backed by a circular buffer so appends never reallocate.
package history

import "signal-systemv1/internal/model"

// Window is a bounded candle history. Not safe for concurrent use; it is
// owned by a single session.
type Window struct {
	buf   []model.Candle
	start int // index of oldest entry
	size  int
}

// New creates a window with the given capacity. Capacity below 2 is clamped.
func New(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]model.Candle, capacity)}
}

// Append adds a closed candle, evicting the oldest when full.
func (w *Window) Append(c model.Candle) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = c
		w.size++
		return
	}
	w.buf[w.start] = c
	w.start = (w.start + 1) % len(w.buf)
}

// Seed replaces the window contents with the most recent entries of cs,
// preserving order. Used to bootstrap from a snapshot or a historical fetch.
func (w *Window) Seed(cs []model.Candle) {
	w.start, w.size = 0, 0
	if over := len(cs) - len(w.buf); over > 0 {
		cs = cs[over:]
	}
	for _, c := range cs {
		w.Append(c)
	}
}

// Len returns the number of candles currently held.
func (w *Window) Len() int { return w.size }

// Cap returns the configured capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Last returns the newest candle, if any.
func (w *Window) Last() (model.Candle, bool) {
	if w.size == 0 {
		return model.Candle{}, false
	}
	return w.buf[(w.start+w.size-1)%len(w.buf)], true
}

// Candles returns an ordered oldest-first copy. Safe to hand downstream;
// mutations of the copy never reach the window.
func (w *Window) Candles() []model.Candle {
	out := make([]model.Candle, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Closes returns the closing-price series, oldest-first.
func (w *Window) Closes() []float64 {
	out := make([]float64, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)].Close
	}
	return out
}
