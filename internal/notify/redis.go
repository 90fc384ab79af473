package notify

import (
	"context"
	"encoding/json"
	"time"

	"tournament_market/internal/logger"
	"tournament_market/internal/metrics"

	redis "github.com/redis/go-redis/v9"
)

// RedisSink publishes events as JSON on a pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

// NewRedisClient connects and pings. It returns nil when addr is empty or unreachable,
// so callers can run without redis.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without it", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel, timeout: 2 * time.Second}
}

func (s *RedisSink) Notify(_ context.Context, e Event) {
	if s == nil || s.client == nil {
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		logger.Error("failed to encode event", "kind", e.Kind, "error", err)
		return
	}
	// detached from the request: the caller may already have returned
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
			metrics.NotifyFailures.WithLabelValues("redis").Inc()
			logger.Warn("failed to publish event", "kind", e.Kind, "channel", s.channel, "error", err)
		}
	}()
}
