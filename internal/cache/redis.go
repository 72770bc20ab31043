package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore shares the read cache between API replicas.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(cfg RedisConfig, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "bugzapp:"}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Default().WarnContext(ctx, "cache get failed", "key", key, "err", err)
		}
		return nil, false
	}

	return b, true
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte) {
	err := s.rdb.Set(ctx, s.prefix+key, val, s.ttl).Err()
	if err != nil {
		slog.Default().WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.prefix+k)
	}

	err := s.rdb.Del(ctx, full...).Err()
	if err != nil {
		slog.Default().WarnContext(ctx, "cache delete failed", "keys", keys, "err", err)
	}
}
