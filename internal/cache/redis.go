package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	appLog "dsigen/internal/log"
	"dsigen/internal/model"
)

const defaultRedisPrefix = "dsigen:events:"

// Redis is a Store shared between processes through a Redis server. Keys
// are namespaced under a prefix so Invalidate only touches this cache.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects lazily to addr. ttl <= 0 selects DefaultTTL.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: defaultRedisPrefix,
		ttl:    ttl,
	}
}

// Ping checks connectivity; callers fall back to Memory on error.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]model.CalendarEvent, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			appLog.Error("redis cache get failed", err, "key", key)
		}
		return nil, false
	}
	var evs []model.CalendarEvent
	if err := json.Unmarshal(data, &evs); err != nil {
		appLog.Error("redis cache entry corrupt", err, "key", key)
		return nil, false
	}
	return evs, true
}

func (r *Redis) Set(ctx context.Context, key string, evs []model.CalendarEvent) {
	data, err := json.Marshal(evs)
	if err != nil {
		appLog.Error("redis cache encode failed", err, "key", key)
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		appLog.Error("redis cache set failed", err, "key", key)
	}
}

func (r *Redis) Invalidate(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
