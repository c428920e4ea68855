// Package pubsub publishes outbound signal messages to Redis channels so
// other processes (dashboards, recorders) can consume them without holding
// a client WebSocket. Optional: the engine runs fine without Redis.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-systemv1/internal/model"
)

// Publisher fans signal messages out over Redis PubSub.
type Publisher struct {
	rdb *goredis.Client
	log *slog.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(addr, password string, log *slog.Logger) (*Publisher, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pubsub: ping redis: %w", err)
	}

	log.Info("redis publisher ready", "addr", addr)
	return &Publisher{rdb: rdb, log: log}, nil
}

// PublishSignal sends one message to pub:signal:<SYMBOL>. Failures are
// logged, never propagated — publishing is advisory.
func (p *Publisher) PublishSignal(ctx context.Context, msg model.SignalMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn("publish marshal failed", "err", err)
		return
	}
	channel := "pub:signal:" + msg.Symbol
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		p.log.Warn("publish failed", "channel", channel, "err", err)
	}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
