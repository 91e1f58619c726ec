package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "supaconnect:session:"

// RedisStore keeps each session as one Redis hash whose expiry is pushed
// forward on every write.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.key(sessionID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis session get: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID, key, value string) error {
	redisKey := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, redisKey, key, value)
	pipe.Expire(ctx, redisKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis session set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID, key string) error {
	if err := s.client.HDel(ctx, s.key(sessionID), key).Err(); err != nil {
		return fmt.Errorf("redis session delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Destroy(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis session destroy: %w", err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	if err := s.client.Expire(ctx, s.key(sessionID), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis session touch: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
