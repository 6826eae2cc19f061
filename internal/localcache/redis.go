package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fieldops:cache:"

// RedisStore is a Store backed by Redis. The zero owner is valid and maps to a
// shared namespace.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	owner  string
}

// NewRedisStore constructs the root store. A ttl of zero keeps values forever.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// Scope returns a store whose keys live under the owner's namespace.
func (s *RedisStore) Scope(owner string) Store {
	return &RedisStore{client: s.client, ttl: s.ttl, logger: s.logger, owner: owner}
}

// Get decodes the value stored under key into dest.
func (s *RedisStore) Get(ctx context.Context, key string, dest any) bool {
	payload, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("localcache get", slog.String("key", key), slog.String("owner", s.owner), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		s.logger.Warn("localcache decode", slog.String("key", key), slog.String("owner", s.owner), slog.Any("error", err))
		return false
	}
	return true
}

// Set encodes value as JSON and stores it under key.
func (s *RedisStore) Set(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("localcache encode", slog.String("key", key), slog.String("owner", s.owner), slog.Any("error", err))
		return
	}
	if err := s.client.Set(ctx, s.redisKey(key), payload, s.ttl).Err(); err != nil {
		s.logger.Warn("localcache set", slog.String("key", key), slog.String("owner", s.owner), slog.Any("error", err))
	}
}

// Remove deletes key.
func (s *RedisStore) Remove(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		s.logger.Warn("localcache remove", slog.String("key", key), slog.String("owner", s.owner), slog.Any("error", err))
	}
}

// Clear deletes every key in the owner's namespace.
func (s *RedisStore) Clear(ctx context.Context) {
	iter := s.client.Scan(ctx, 0, s.namespace()+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("localcache scan", slog.String("owner", s.owner), slog.Any("error", err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("localcache clear", slog.String("owner", s.owner), slog.Any("error", err))
	}
}

// ScanKey walks every namespace holding key and calls fn with the owner and
// the raw payload. It backs maintenance jobs that prune stale snapshots.
func (s *RedisStore) ScanKey(ctx context.Context, key string, fn func(owner string, payload []byte) error) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*:"+key, 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		payload, err := s.client.Get(ctx, full).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}
		owner := full[len(keyPrefix) : len(full)-len(key)-1]
		if err := fn(owner, payload); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisStore) namespace() string {
	return keyPrefix + s.owner + ":"
}

func (s *RedisStore) redisKey(key string) string {
	return s.namespace() + key
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Scoper = (*RedisStore)(nil)
)
