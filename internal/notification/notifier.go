// Package notification delivers simulated-order events to external
// channels (webhooks, logs). Delivery is best effort and always off the
// pipeline hot path.
package notification

import (
	"context"
	"log/slog"

	"signal-systemv1/internal/model"
)

// Notifier is the interface for all notification backends.
type Notifier interface {
	// NotifyOrder delivers one simulated order. Returns error if delivery
	// fails.
	NotifyOrder(ctx context.Context, o model.Order) error
}

// LogNotifier logs orders through the structured logger (useful for
// development and as the default backend).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyOrder(ctx context.Context, o model.Order) error {
	n.log.Info("simulated order",
		"id", o.ID, "symbol", o.Symbol, "side", o.Side,
		"price", o.Price, "signal", o.Signal, "confidence", o.Confidence)
	return nil
}
