// Package tokenstore records consumed single-use token ids.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Ledger remembers token ids until their expiry so a token can be
// redeemed once.
type Ledger interface {
	// Consume marks jti as used for ttl. It reports false when jti had
	// already been consumed.
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

const keyPrefix = "medelle:token:used:"

type RedisLedger struct {
	client redis.Cmdable
}

func NewRedisLedger(client redis.Cmdable) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, errors.New("token id is required")
	}
	ok, err := l.client.SetNX(ctx, keyPrefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record token use: %w", err)
	}
	return ok, nil
}

// MemoryLedger keeps consumed ids in process memory. Suitable for a single
// instance only.
type MemoryLedger struct {
	cache *cache.Cache
}

func NewMemoryLedger(cleanupInterval time.Duration) *MemoryLedger {
	return &MemoryLedger{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (l *MemoryLedger) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, errors.New("token id is required")
	}
	// Add fails when the key is present and unexpired
	if err := l.cache.Add(jti, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}
