package redis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"cloudops-quiz-engine/internal/bank"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankCache caches raw bank documents in Redis and falls back to the wrapped
// fetcher on a miss. Documents are stored as: SET quiz:bank:{source} {json}
type BankCache struct {
	client  *redis.Client
	fetcher bank.Fetcher
	ttl     time.Duration
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankCache(client *redis.Client, fetcher bank.Fetcher, ttl time.Duration) *BankCache {
	return &BankCache{
		client:  client,
		fetcher: fetcher,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch implements bank.Fetcher.
func (c *BankCache) Fetch(ctx context.Context, source string) ([]byte, error) {
	key := c.key(source)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		return raw, nil
	}

	result, err, _ := c.sf.Do(source, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			return raw, nil
		}

		raw, err := c.fetcher.Fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		// Only documents that parse are worth caching.
		if _, err := bank.Parse(source, raw); err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Invalidate drops the cached document for source.
func (c *BankCache) Invalidate(ctx context.Context, source string) error {
	if err := c.client.Del(ctx, c.key(source)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate bank %s: %w", source, err)
	}
	return nil
}

func (c *BankCache) key(source string) string {
	return "quiz:bank:" + source
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
