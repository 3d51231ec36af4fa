package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"turag/internal/config"
)

// Lock serializes requests against the same session id so a new turn
// always observes the previous turn's committed state, while different
// sessions proceed fully in parallel.
type Lock interface {
	// Acquire returns true if the session's lock was obtained, false if
	// another request currently holds it.
	Acquire(ctx context.Context, sessionID string) (bool, error)
	Release(ctx context.Context, sessionID string) error
}

// RedisLock is a Redis SETNX-backed Lock, grounded on the teacher's
// RedisGenerationCache.AcquireCommitLock.
type RedisLock struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLock builds a RedisLock. ttl bounds how long a crashed holder
// can block a session before the lock self-expires.
func NewRedisLock(cfg config.RedisConfig, ttl time.Duration) (*RedisLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{client: client, ttl: ttl}, nil
}

func (l *RedisLock) key(sessionID string) string {
	return "session:" + sessionID + ":lock"
}

func (l *RedisLock) Acquire(ctx context.Context, sessionID string) (bool, error) {
	return l.client.SetNX(ctx, l.key(sessionID), "1", l.ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, sessionID string) error {
	return l.client.Del(ctx, l.key(sessionID)).Err()
}

// InProcessLock is an in-memory Lock for tests and single-process
// deployments: a set of currently-held session ids guarded by a mutex.
type InProcessLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewInProcessLock() *InProcessLock {
	return &InProcessLock{held: make(map[string]bool)}
}

func (l *InProcessLock) Acquire(ctx context.Context, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[sessionID] {
		return false, nil
	}
	l.held[sessionID] = true
	return true, nil
}

func (l *InProcessLock) Release(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, sessionID)
	return nil
}
