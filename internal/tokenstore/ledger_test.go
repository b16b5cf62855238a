package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_ConsumeOnce(t *testing.T) {
	l := NewMemoryLedger(time.Minute)
	ctx := context.Background()

	ok, err := l.Consume(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Consume(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Consume(ctx, "jti-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLedger_ExpiredEntryCanBeReused(t *testing.T) {
	l := NewMemoryLedger(time.Minute)
	ctx := context.Background()

	ok, err := l.Consume(ctx, "jti", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	ok, err = l.Consume(ctx, "jti", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedger_RejectsEmptyID(t *testing.T) {
	_, err := NewMemoryLedger(time.Minute).Consume(context.Background(), "", time.Minute)
	assert.Error(t, err)
}

func TestRedisLedger_ConnectionError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	ok, err := NewRedisLedger(client).Consume(context.Background(), "jti", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
