// Package gateway exposes the client-facing HTTP surface: the /ws/signals
// WebSocket endpoint that spawns one streaming session per connection, plus
// a small REST surface over the order ledger and candle snapshots.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"signal-systemv1/internal/session"
)

// Config holds the server address and the session template applied to every
// connection. The template's Symbol is overridden per request.
type Config struct {
	Addr          string
	DefaultSymbol string
	Session       session.Config
}

// Server is the WebSocket/REST gateway. One session per WebSocket client;
// sessions are cancelled collectively on Stop.
type Server struct {
	cfg      Config
	deps     session.Deps // Sink left nil, filled per connection
	log      *slog.Logger
	srv      *http.Server
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates the gateway. deps.Sink must be nil; everything else is
// shared across sessions.
func NewServer(cfg Config, deps session.Deps, log *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/signals", s.handleSignals)
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/candles", s.handleCandles)

	s.srv = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("gateway listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("gateway server error", "err", err)
		}
	}()
}

// Stop cancels all sessions and shuts the HTTP server down, waiting for
// session goroutines up to the context deadline.
func (s *Server) Stop(ctx context.Context) {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("sessions still draining at shutdown deadline")
	}
	s.srv.Shutdown(ctx)
}

// handleSignals upgrades the connection and runs a session for the requested
// symbol until either side goes away.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		symbol = s.cfg.DefaultSymbol
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}

	cfg := s.cfg.Session
	cfg.Symbol = symbol
	deps := s.deps
	deps.Sink = newWSSink(conn)

	sess, err := session.New(cfg, deps)
	if err != nil {
		s.log.Error("session setup failed", "symbol", symbol, "err", err)
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.readLoop(conn)
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := sess.Run(ctx); err != nil {
			s.log.Info("session ended", "symbol", symbol, "state", sess.State().String(), "err", err)
		}
	}()
}

// readLoop drains inbound frames so control messages are processed and a
// client disconnect cancels the session promptly. Payloads are ignored; the
// protocol is server-push only.
func (s *Server) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleOrders returns the retained simulated orders, oldest-first.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Ledger.Recent())
}

// handleCandles returns the snapshotted candle history for a symbol.
func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	if s.deps.Snapshots == nil {
		http.Error(w, "snapshots disabled", http.StatusNotFound)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		symbol = s.cfg.DefaultSymbol
	}
	cs := s.deps.Snapshots.Candles(symbol)
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n < len(cs) {
			cs = cs[len(cs)-n:]
		}
	}
	writeJSON(w, cs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
