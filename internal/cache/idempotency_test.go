package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	s := NewMemoryIdempotencyStore(time.Hour)
	s.now = func() time.Time { return now }

	acquired, id, err := s.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Empty(t, id)

	acquired, id, err = s.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, acquired, "a pending key is not handed out twice")
	assert.Empty(t, id)

	require.NoError(t, s.Complete(ctx, "k1", "req-1"))
	acquired, id, err = s.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, "req-1", id)

	now = now.Add(2 * time.Hour)
	acquired, _, err = s.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, acquired, "expired keys are forgotten")
}

func TestMemoryIdempotencyStoreRelease(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Hour)

	acquired, _, err := s.Reserve(ctx, "k1")
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, s.Release(ctx, "k1"))

	acquired, _, err = s.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, acquired, "a released key can be claimed again")
}

func TestMemoryIdempotencyStorePendingExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	s := NewMemoryIdempotencyStore(time.Hour)
	s.now = func() time.Time { return now }

	acquired, _, err := s.Reserve(ctx, "k1")
	require.NoError(t, err)
	require.True(t, acquired)

	now = now.Add(DefaultPendingTTL)
	acquired, _, err = s.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, acquired, "an abandoned reservation lapses")
}

func TestMemoryIdempotencyStoreSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Hour)

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, _, err := s.Reserve(ctx, "k1")
			assert.NoError(t, err)
			if acquired {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRedisIdempotencyStoreUnreachable(t *testing.T) {
	// Nothing listens on port 1; the client must surface the dial error.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	s := NewRedisIdempotencyStore(client, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := s.Reserve(ctx, "k1")
	assert.Error(t, err)
	assert.Error(t, s.Complete(ctx, "k1", "req-1"))
	assert.Error(t, s.Release(ctx, "k1"))
}
