// Package session runs the per-client streaming pipeline: one upstream feed
// subscription, one candle aggregator and history window, one inference
// model, one outbound sink. The session owns reconnection toward the feed
// and liveness toward the client; the gateway only opens and cancels it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"signal-systemv1/internal/decision"
	"signal-systemv1/internal/feature"
	"signal-systemv1/internal/inference"
	"signal-systemv1/internal/marketdata/agg"
	"signal-systemv1/internal/marketdata/feed"
	"signal-systemv1/internal/marketdata/history"
	"signal-systemv1/internal/metrics"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/notification"
	"signal-systemv1/internal/orders"
)

// ErrClientGone indicates the outbound sink rejected a write: the client has
// disconnected and the session must tear down.
var ErrClientGone = errors.New("session: client gone")

// errStaleUpstream is the internal verdict of the timeout probe: the client
// still answers but the feed has gone quiet, so reconnect upstream.
var errStaleUpstream = errors.New("session: upstream stale")

// State is the session lifecycle state.
type State int32

const (
	Connecting State = iota
	Streaming
	Reconnecting
	Rejected
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Reconnecting:
		return "reconnecting"
	case Rejected:
		return "rejected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sink is the outbound half of a client connection. Send failures are
// terminal for the session; Close must be idempotent.
type Sink interface {
	Send(v any) error
	Close(reason string) error
}

// Publisher mirrors outbound signal messages to an external bus. Optional.
type Publisher interface {
	PublishSignal(ctx context.Context, msg model.SignalMessage)
}

// Journal persists emitted orders. Optional.
type Journal interface {
	Record(o model.Order) error
}

// Snapshots receives candle and order state for rate-limited persistence.
// Optional.
type Snapshots interface {
	OfferCandles(symbol string, cs []model.Candle)
	OfferOrders(os []model.Order)
	Candles(symbol string) []model.Candle
}

// Candle history capacity bounds. Below the minimum the feature window
// could never fill; above the maximum the snapshot retention is exceeded.
const (
	MinHistoryCap = 100
	MaxHistoryCap = 300
)

// Config holds the per-session tunables.
type Config struct {
	Symbol         string
	HistoryCap     int           // candle window size, clamped to [MinHistoryCap, MaxHistoryCap] (default 300)
	CandleInterval time.Duration // aggregation bucket (default 1s)
	Heartbeat      time.Duration // quiet interval before a heartbeat (default 15s)
	Timeout        time.Duration // quiet interval before the probe (default 30s)
	Backoff        time.Duration // fixed feed reconnect delay (default 5s)
	SeedLimit      int           // historical candles fetched on start (default HistoryCap)
}

func (c *Config) defaults() {
	switch {
	case c.HistoryCap <= 0:
		c.HistoryCap = MaxHistoryCap
	case c.HistoryCap < MinHistoryCap:
		c.HistoryCap = MinHistoryCap
	case c.HistoryCap > MaxHistoryCap:
		c.HistoryCap = MaxHistoryCap
	}
	if c.CandleInterval <= 0 {
		c.CandleInterval = time.Second
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = 15 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Backoff <= 0 {
		c.Backoff = 5 * time.Second
	}
	if c.SeedLimit <= 0 {
		c.SeedLimit = c.HistoryCap
	}
}

// Deps are the collaborators a session drives. Feed, Sink, Models, Features,
// Decider and Log are required; the rest are optional.
type Deps struct {
	Feed      feed.Feed
	Sink      Sink
	Models    *inference.Registry
	Features  *feature.Engine
	Decider   *decision.Engine
	Ledger    *orders.Ledger
	Journal   Journal
	Snapshots Snapshots
	Publisher Publisher
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

// Session is one client's streaming pipeline.
type Session struct {
	cfg  Config
	deps Deps

	agg   *agg.Aggregator
	hist  *history.Window
	state atomic.Int32

	closeOnce sync.Once
	now       func() time.Time
}

// New creates a session. Defaults are applied to zero-valued config fields.
func New(cfg Config, deps Deps) (*Session, error) {
	cfg.defaults()
	if cfg.Symbol == "" {
		return nil, errors.New("session: symbol required")
	}
	if deps.Feed == nil || deps.Sink == nil || deps.Models == nil ||
		deps.Features == nil || deps.Decider == nil || deps.Log == nil {
		return nil, errors.New("session: missing required dependency")
	}

	s := &Session{
		cfg:  cfg,
		deps: deps,
		hist: history.New(cfg.HistoryCap),
		now:  time.Now,
	}
	s.agg = agg.New(cfg.Symbol, cfg.CandleInterval)
	s.agg.OnDroppedTrade = func() {
		if deps.Metrics != nil {
			deps.Metrics.DroppedTrades.Inc()
		}
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run drives the session until the client disconnects, the context is
// cancelled, or the symbol is rejected. Teardown is performed exactly once
// regardless of how the loop exits.
func (s *Session) Run(ctx context.Context) error {
	log := s.deps.Log.With("symbol", s.cfg.Symbol)
	defer s.teardown("session closed")

	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionsActive.Inc()
		defer s.deps.Metrics.SessionsActive.Dec()
	}

	mdl, err := s.deps.Models.Lookup(s.cfg.Symbol)
	if err != nil {
		s.setState(Rejected)
		if s.deps.Metrics != nil {
			s.deps.Metrics.SessionsRejected.Inc()
		}
		log.Warn("session rejected", "err", err)
		s.teardown("no model for symbol")
		return err
	}

	s.seedHistory(ctx, log)

	bo := &backoff.Backoff{
		Min:    s.cfg.Backoff,
		Max:    s.cfg.Backoff,
		Jitter: false,
	}

	s.setState(Connecting)
	for {
		st, err := s.deps.Feed.Subscribe(ctx, s.cfg.Symbol)
		if err != nil {
			log.Warn("feed subscribe failed", "err", err)
			if err := s.waitBackoff(ctx, bo.Duration()); err != nil {
				return err
			}
			continue
		}

		s.setState(Streaming)
		log.Info("session streaming")
		err = s.stream(ctx, st, mdl)
		st.Close()

		switch {
		case errors.Is(err, ErrClientGone):
			log.Info("client gone, closing session")
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			log.Warn("feed interrupted, reconnecting", "err", err)
			if err := s.waitBackoff(ctx, bo.Duration()); err != nil {
				return err
			}
		}
	}
}

// waitBackoff sleeps the fixed reconnect delay, counting the attempt.
func (s *Session) waitBackoff(ctx context.Context, d time.Duration) error {
	s.setState(Reconnecting)
	if s.deps.Metrics != nil {
		s.deps.Metrics.FeedReconnects.Inc()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// stream consumes one subscription until it fails, the client vanishes, or
// the upstream goes stale. The idle timer enforces the liveness contract:
// a heartbeat after every quiet Heartbeat interval, and past Timeout exactly
// one probe whose outcome decides between reconnect and teardown.
func (s *Session) stream(ctx context.Context, st feed.Stream, mdl inference.Model) error {
	idle := time.NewTimer(s.cfg.Heartbeat)
	defer idle.Stop()
	lastData := s.now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-st.Events():
			if !ok {
				return feed.ErrClosed
			}
			lastData = s.now()
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.cfg.Heartbeat)
			if err := s.handleEvent(ctx, ev, mdl); err != nil {
				return err
			}

		case err, ok := <-st.Errs():
			if !ok {
				return feed.ErrClosed
			}
			return fmt.Errorf("session: feed: %w", err)

		case <-idle.C:
			quiet := s.now().Sub(lastData)
			if err := s.sendHeartbeat(); err != nil {
				return ErrClientGone
			}
			if quiet >= s.cfg.Timeout {
				// Client answered the probe; the feed is the silent party.
				return errStaleUpstream
			}
			idle.Reset(s.cfg.Heartbeat)
		}
	}
}

// handleEvent folds one upstream event into the aggregator and runs the
// signal pipeline when a candle closes.
func (s *Session) handleEvent(ctx context.Context, ev feed.Event, mdl inference.Model) error {
	var (
		closed model.Candle
		ok     bool
	)
	switch {
	case ev.Trade != nil:
		if s.deps.Metrics != nil {
			s.deps.Metrics.TradesTotal.Inc()
		}
		closed, ok = s.agg.Ingest(*ev.Trade)
	case ev.Kline != nil:
		if s.deps.Metrics != nil {
			s.deps.Metrics.TradesTotal.Inc()
		}
		closed, ok = s.agg.IngestKline(*ev.Kline)
	default:
		return nil
	}
	if !ok {
		return nil
	}
	return s.onCandleClose(ctx, closed, mdl)
}

// onCandleClose runs features, inference and the decision policy for one
// closed candle, then emits the signal message to the client.
func (s *Session) onCandleClose(ctx context.Context, c model.Candle, mdl inference.Model) error {
	start := s.now()
	log := s.deps.Log.With("symbol", s.cfg.Symbol)

	if s.deps.Metrics != nil {
		s.deps.Metrics.CandlesTotal.Inc()
	}
	s.hist.Append(c)
	if s.deps.Snapshots != nil {
		s.deps.Snapshots.OfferCandles(s.cfg.Symbol, s.hist.Candles())
	}

	vec, ready := s.deps.Features.Compute(s.hist.Candles())
	if !ready {
		return nil
	}

	probs, err := mdl.PredictProba(vec)
	if err != nil {
		log.Warn("inference failed", "err", err)
		return nil
	}

	ts := s.now().Unix()
	d := s.deps.Decider.Decide(probs, s.cfg.Symbol, c.Close, ts)

	msg := model.SignalMessage{
		Symbol:     s.cfg.Symbol,
		Close:      c.Close,
		MA5:        vec.MA5,
		MA20:       vec.MA20,
		RSI:        vec.RSI14,
		MACD:       model.MACDPayload{MACD: vec.MACD, Signal: vec.MACDSignal, Hist: vec.MACDDiff},
		Signal:     d.Signal.String(),
		Confidence: d.Confidence,
		Probs:      probsMap(d.Probs),
		T:          ts,
	}

	if d.Order != nil {
		action := d.Order.Side
		msg.Action = &action
		s.recordOrder(ctx, *d.Order, log)
	}

	if s.deps.Publisher != nil {
		s.deps.Publisher.PublishSignal(ctx, msg)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.SignalsTotal.Inc()
		s.deps.Metrics.PipelineDur.Observe(s.now().Sub(start).Seconds())
	}
	if err := s.deps.Sink.Send(msg); err != nil {
		return ErrClientGone
	}
	return nil
}

// recordOrder fans one emitted order out to the journal, snapshot store and
// notifier. All three are best effort.
func (s *Session) recordOrder(ctx context.Context, o model.Order, log *slog.Logger) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.OrdersTotal.Inc()
	}
	log.Info("simulated order emitted",
		"id", o.ID, "side", o.Side, "price", o.Price, "confidence", o.Confidence)

	if s.deps.Journal != nil {
		if err := s.deps.Journal.Record(o); err != nil {
			log.Warn("order journal write failed", "err", err)
		}
	}
	if s.deps.Snapshots != nil && s.deps.Ledger != nil {
		s.deps.Snapshots.OfferOrders(s.deps.Ledger.Recent())
	}
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyOrder(ctx, o); err != nil {
			log.Warn("order notification failed", "err", err)
		}
	}
}

func (s *Session) sendHeartbeat() error {
	msg := model.HeartbeatMessage{
		Heartbeat: true,
		Symbol:    s.cfg.Symbol,
		T:         s.now().Unix(),
	}
	if err := s.deps.Sink.Send(msg); err != nil {
		return err
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.HeartbeatsTotal.Inc()
	}
	return nil
}

// seedHistory warms the candle window from the snapshot store, falling back
// to a historical fetch from the feed when the snapshot is too short for the
// feature window. Failure to seed is not fatal; the window fills live.
func (s *Session) seedHistory(ctx context.Context, log *slog.Logger) {
	var seed []model.Candle
	if s.deps.Snapshots != nil {
		seed = s.deps.Snapshots.Candles(s.cfg.Symbol)
	}
	if len(seed) < s.deps.Features.Window() {
		cs, err := s.deps.Feed.RecentCandles(ctx, s.cfg.Symbol, s.cfg.SeedLimit)
		if err != nil {
			log.Warn("historical seed fetch failed", "err", err)
		} else if len(cs) > len(seed) {
			seed = cs
		}
	}
	if len(seed) == 0 {
		return
	}
	s.hist.Seed(seed)
	log.Info("history seeded", "candles", s.hist.Len())
}

// teardown closes the sink exactly once. A rejected session keeps its
// Rejected state; every other exit ends in Closed.
func (s *Session) teardown(reason string) {
	s.closeOnce.Do(func() {
		if s.State() != Rejected {
			s.setState(Closed)
		}
		if err := s.deps.Sink.Close(reason); err != nil {
			s.deps.Log.Debug("sink close", "err", err)
		}
	})
}

func probsMap(probs [model.NumClasses]float64) map[string]float64 {
	labels := model.SignalLabels()
	m := make(map[string]float64, model.NumClasses)
	for i, p := range probs {
		m[labels[i]] = p
	}
	return m
}
