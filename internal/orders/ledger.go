// Package orders holds the simulated-order ledger and its durable journal.
//
// The ledger is the single owner of order IDs and the bounded in-memory
// history; all access goes through its lock so concurrent sessions can
// record orders without interleaving.
package orders

import (
	"sync"

	"signal-systemv1/internal/model"
)

// DefaultCapacity bounds the in-memory ledger.
const DefaultCapacity = 200

// Ledger is a bounded FIFO of simulated orders with a process-wide
// monotonic ID counter. IDs start at 1 and are never reused, even after
// eviction.
type Ledger struct {
	mu     sync.Mutex
	cap    int
	nextID int64
	orders []model.Order
}

// NewLedger creates a ledger with the given capacity (DefaultCapacity when
// capacity <= 0).
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{cap: capacity, nextID: 1}
}

// Append creates an immutable order with the next ID and records it,
// evicting the oldest entry beyond capacity. Returns the created order.
func (l *Ledger) Append(symbol string, price float64, sig model.Signal, confidence float64, ts int64) model.Order {
	var side string
	switch {
	case sig.IsBuy():
		side = model.SideBuy
	case sig.IsSell():
		side = model.SideSell
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o := model.Order{
		ID:         l.nextID,
		T:          ts,
		Symbol:     symbol,
		Price:      price,
		Signal:     sig.String(),
		Confidence: confidence,
		Side:       side,
	}
	l.nextID++

	l.orders = append(l.orders, o)
	if len(l.orders) > l.cap {
		l.orders = l.orders[len(l.orders)-l.cap:]
	}
	return o
}

// Recent returns a copy of the retained orders, oldest-first.
func (l *Ledger) Recent() []model.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]model.Order, len(l.orders))
	copy(cp, l.orders)
	return cp
}

// Len returns the number of retained orders.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}

// Restore seeds the ledger from a persisted snapshot, keeping the most
// recent entries up to capacity. The ID counter resumes past the highest
// restored ID so IDs stay strictly increasing across restarts.
func (l *Ledger) Restore(os []model.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if over := len(os) - l.cap; over > 0 {
		os = os[over:]
	}
	l.orders = append(l.orders[:0], os...)
	for _, o := range os {
		if o.ID >= l.nextID {
			l.nextID = o.ID + 1
		}
	}
}
