package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVStore keeps session slots as plain Redis strings under a key prefix.
// A positive ttl makes the store volatile: every write refreshes the expiry.
// Keys are laid out as {prefix}:{key}, e.g. quiz:tab:{tabID}:quiz_current_session.
type KVStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewKVStore(client *redis.Client, prefix string, ttl time.Duration) *KVStore {
	return &KVStore{client: client, prefix: prefix, ttl: ttl}
}

// Scoped returns a store whose keys live under an extra namespace segment.
func (s *KVStore) Scoped(namespace string) *KVStore {
	return &KVStore{client: s.client, prefix: s.key(namespace), ttl: s.ttl}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Drop deletes every key under the store prefix.
func (s *KVStore) Drop(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", s.prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *KVStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}
