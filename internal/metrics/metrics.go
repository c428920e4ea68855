// Package metrics exposes Prometheus instrumentation and the health/metrics
// HTTP server for the signal engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	TradesTotal      prometheus.Counter
	CandlesTotal     prometheus.Counter
	DroppedTrades    prometheus.Counter
	SignalsTotal     prometheus.Counter
	OrdersTotal      prometheus.Counter
	HeartbeatsTotal  prometheus.Counter
	FeedReconnects   prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsRejected prometheus.Counter
	PipelineDur      prometheus.Histogram
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_trades_total",
			Help: "Total upstream trade/kline events ingested",
		}),
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_candles_total",
			Help: "Total candles closed by the aggregator",
		}),
		DroppedTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_dropped_trades_total",
			Help: "Total late trades dropped by the aggregator",
		}),
		SignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_signals_total",
			Help: "Total signal messages emitted downstream",
		}),
		OrdersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_orders_total",
			Help: "Total simulated orders recorded",
		}),
		HeartbeatsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_heartbeats_total",
			Help: "Total heartbeat messages sent to clients",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_feed_reconnects_total",
			Help: "Total upstream feed reconnect attempts",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_sessions_active",
			Help: "Currently active client sessions",
		}),
		SessionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_sessions_rejected_total",
			Help: "Sessions rejected for lack of a model",
		}),
		PipelineDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_pipeline_duration_seconds",
			Help:    "Candle-close to signal-emit pipeline duration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	prometheus.MustRegister(
		m.TradesTotal, m.CandlesTotal, m.DroppedTrades,
		m.SignalsTotal, m.OrdersTotal, m.HeartbeatsTotal,
		m.FeedReconnects, m.SessionsActive, m.SessionsRejected,
		m.PipelineDur,
	)
	return m
}
