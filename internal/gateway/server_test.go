package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"signal-systemv1/internal/decision"
	"signal-systemv1/internal/feature"
	"signal-systemv1/internal/inference"
	"signal-systemv1/internal/marketdata/feed"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/orders"
	"signal-systemv1/internal/session"
)

const testSymbol = "BTCUSDT"

type stubModel struct {
	probs [model.NumClasses]float64
}

func (m stubModel) PredictProba(feature.Vector) ([model.NumClasses]float64, error) {
	return m.probs, nil
}

type fakeStream struct {
	events chan feed.Event
	errs   chan error
}

func (s *fakeStream) Events() <-chan feed.Event { return s.events }
func (s *fakeStream) Errs() <-chan error        { return s.errs }
func (s *fakeStream) Close()                    {}

// fakeFeed hands every subscriber a stream preloaded with closed klines.
type fakeFeed struct {
	seed   []model.Candle
	klines []model.Kline
}

func (f *fakeFeed) Subscribe(ctx context.Context, symbol string) (feed.Stream, error) {
	st := &fakeStream{
		events: make(chan feed.Event, len(f.klines)+1),
		errs:   make(chan error, 1),
	}
	for i := range f.klines {
		st.events <- feed.Event{Kline: &f.klines[i]}
	}
	return st, nil
}

func (f *fakeFeed) RecentCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	return f.seed, nil
}

const baseBucket = int64(1_700_000_000)

func risingCandles(n int) []model.Candle {
	cs := make([]model.Candle, n)
	for i := range cs {
		px := 20000 + float64(i)*3
		cs[i] = model.Candle{
			Symbol:      testSymbol,
			BucketStart: baseBucket + int64(i),
			Open:        px,
			High:        px + 1,
			Low:         px - 1,
			Close:       px,
			Volume:      1,
		}
	}
	return cs
}

func finalKlines(seedLen, n int) []model.Kline {
	ks := make([]model.Kline, n)
	for i := range ks {
		px := 20500 + float64(i)
		ks[i] = model.Kline{
			Symbol:  testSymbol,
			StartMs: (baseBucket + int64(seedLen+i)) * 1000,
			Open:    px,
			High:    px + 1,
			Low:     px - 1,
			Close:   px,
			Volume:  1,
			IsFinal: true,
		}
	}
	return ks
}

func newTestGateway(t *testing.T, probs [model.NumClasses]float64) (*Server, *httptest.Server, *orders.Ledger) {
	t.Helper()

	reg := inference.NewRegistry(testSymbol)
	reg.Register(testSymbol, stubModel{probs: probs})
	led := orders.NewLedger(0)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps := session.Deps{
		Feed:     &fakeFeed{seed: risingCandles(60), klines: finalKlines(60, 3)},
		Models:   reg,
		Features: feature.NewEngine(),
		Decider:  decision.NewEngine(0, led),
		Ledger:   led,
		Log:      log,
	}
	srv := NewServer(Config{
		Addr:          "127.0.0.1:0",
		DefaultSymbol: testSymbol,
		Session: session.Config{
			Heartbeat: 200 * time.Millisecond,
			Timeout:   time.Second,
			Backoff:   10 * time.Millisecond,
		},
	}, deps, log)

	ts := httptest.NewServer(srv.srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv, ts, led
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

// readSignal reads frames until a signal message arrives, skipping heartbeats.
func readSignal(t *testing.T, conn *websocket.Conn) model.SignalMessage {
	t.Helper()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var probe struct {
			Heartbeat bool `json:"heartbeat"`
		}
		if json.Unmarshal(data, &probe) == nil && probe.Heartbeat {
			continue
		}
		var msg model.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode signal: %v", err)
		}
		return msg
	}
}

func TestSignalsEndpointStreams(t *testing.T) {
	_, ts, led := newTestGateway(t, [model.NumClasses]float64{0.02, 0.02, 0.02, 0.04, 0.90})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/signals?symbol=btcusdt"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	msg := readSignal(t, conn)
	if msg.Symbol != testSymbol {
		t.Fatalf("symbol = %q, want %q", msg.Symbol, testSymbol)
	}
	if msg.Signal != "Strong BUY" {
		t.Fatalf("signal = %q, want Strong BUY", msg.Signal)
	}
	if msg.Action == nil || *msg.Action != model.SideBuy {
		t.Fatalf("action = %v, want BUY", msg.Action)
	}

	deadline := time.Now().Add(2 * time.Second)
	for led.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no order recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSignalsEndpointFallsBackToDefaultModel(t *testing.T) {
	_, ts, _ := newTestGateway(t, [model.NumClasses]float64{0.1, 0.1, 0.6, 0.1, 0.1})

	// DOGEUSDT has no model of its own; the registry falls back to the
	// default symbol's model, so the session streams instead of rejecting.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/signals?symbol=DOGEUSDT"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("fallback session should stream, got %v", err)
	}
}

func TestSignalsEndpointClosesWhenNoModelAtAll(t *testing.T) {
	led := orders.NewLedger(0)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := session.Deps{
		Feed:     &fakeFeed{},
		Models:   inference.NewRegistry(testSymbol), // empty: nothing to fall back to
		Features: feature.NewEngine(),
		Decider:  decision.NewEngine(0, led),
		Ledger:   led,
		Log:      log,
	}
	srv := NewServer(Config{DefaultSymbol: testSymbol}, deps, log)
	ts := httptest.NewServer(srv.srv.Handler)
	defer ts.Close()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/signals?symbol=DOGEUSDT"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close frame, got %v", err)
	}
	if closeErr.Text != "no model for symbol" {
		t.Fatalf("close reason = %q", closeErr.Text)
	}
}

func TestOrdersEndpoint(t *testing.T) {
	_, ts, led := newTestGateway(t, [model.NumClasses]float64{})
	led.Append(testSymbol, 20000, model.StrongBuy, 0.9, 1_700_000_000)

	resp, err := http.Get(ts.URL + "/api/orders")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got []model.Order
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 || got[0].Side != model.SideBuy {
		t.Fatalf("orders = %+v", got)
	}
}
