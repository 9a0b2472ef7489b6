package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// Redis is a shared Store for deployments running several API replicas.
// Values are stored as JSON under namespace+key.
type Redis[T any] struct {
	rdb       redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewRedis[T any](rdb redis.UniversalClient, namespace string, ttl time.Duration) *Redis[T] {
	return &Redis[T]{rdb: rdb, namespace: namespace, ttl: ttl}
}

// NewRedisClient connects and pings. Callers fall back to the local cache
// when it fails.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *Redis[T]) key(k string) string {
	return r.namespace + k
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get: %w", err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		// A value written by an older build; treat as a miss.
		_ = r.rdb.Del(ctx, r.key(key)).Err()
		return zero, false, nil
	}
	return v, true, nil
}

func (r *Redis[T]) Set(ctx context.Context, key string, data T) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DeletePrefix walks the keyspace with SCAN, never KEYS.
func (r *Redis[T]) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	match := r.key(prefix) + "*"
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
