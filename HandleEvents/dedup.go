package HandleEvents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultDedupTTL = 10 * time.Minute
	dedupKeyPrefix  = "slack-thread-summarizer:event:"
)

// Deduper suppresses Slack's redeliveries of an event. Claim reports whether the caller is the
// first to see eventId.
type Deduper interface {
	Claim(ctx context.Context, eventId string) bool
}

type NoopDeduper struct{}

func (NoopDeduper) Claim(context.Context, string) bool { return true }

type SetNXClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisDeduper marks event ids with SETNX and a TTL. Redis failures let the event through.
type RedisDeduper struct {
	client SetNXClient
	ttl    time.Duration
}

func NewRedisDeduper(client SetNXClient, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func (d *RedisDeduper) Claim(ctx context.Context, eventId string) bool {
	if eventId == "" {
		return true
	}

	claimed, err := d.client.SetNX(ctx, dedupKeyPrefix+eventId, 1, d.ttl).Result()
	if err != nil {
		slog.WarnContext(ctx, "HandleEvents:Claim#Error while marking the event, letting it through",
			"event_id", eventId,
			"error", err)
		return true
	}
	return claimed
}
