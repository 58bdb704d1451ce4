package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "idempotency:"

	// pendingMarker holds a reserved key until its request id is known.
	pendingMarker = "\x00pending"

	// DefaultPendingTTL bounds how long a reservation survives a submitter
	// that never completes or releases it.
	DefaultPendingTTL = 30 * time.Second
)

// IdempotencyStore maps client keys to the request id they produced.
type IdempotencyStore interface {
	// Reserve claims key for a new submission. When the key is already taken
	// it returns false and the recorded request id, which is "" while the
	// holder is still submitting.
	Reserve(ctx context.Context, key string) (acquired bool, requestID string, err error)

	// Complete records the request id created under a reserved key.
	Complete(ctx context.Context, key, requestID string) error

	// Release frees a reserved key whose submission failed.
	Release(ctx context.Context, key string) error
}

type RedisIdempotencyStore struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl, pendingTTL: DefaultPendingTTL}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (bool, string, error) {
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, pendingMarker, s.pendingTTL).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}

	id, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Released or expired between the two calls; the caller retries.
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if id == pendingMarker {
		return false, "", nil
	}
	return false, id, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, requestID string) error {
	return s.client.Set(ctx, idempotencyPrefix+key, requestID, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyPrefix+key).Err()
}

type memoryEntry struct {
	requestID string
	expiresAt time.Time
}

// MemoryIdempotencyStore is a process local IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	pendingTTL time.Duration
	now        func() time.Time
	entries    map[string]memoryEntry
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		ttl:        ttl,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
		entries:    map[string]memoryEntry{},
	}
}

func (s *MemoryIdempotencyStore) Reserve(ctx context.Context, key string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && (e.expiresAt.IsZero() || now.Before(e.expiresAt)) {
		if e.requestID == pendingMarker {
			return false, "", nil
		}
		return false, e.requestID, nil
	}
	s.entries[key] = memoryEntry{requestID: pendingMarker, expiresAt: expiry(now, s.pendingTTL)}
	return true, "", nil
}

func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{requestID: requestID, expiresAt: expiry(s.now(), s.ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// expiry returns the zero time, meaning never, for non positive ttls.
func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
