package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/ownbang/config"
	"github.com/Domenick1991/ownbang/internal/lock"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
	}
}

// Client exposes the underlying connection so other Redis backed components
// share one pool.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// AcquireSessionLock marks reservationID as having a session being set up.
// The key expires after ttl so a crashed holder cannot wedge the reservation.
func (c *RedisCache) AcquireSessionLock(ctx context.Context, reservationID int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, sessionLockKey(reservationID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseSessionLock(ctx context.Context, reservationID int64) error {
	return c.client.Del(ctx, sessionLockKey(reservationID)).Err()
}

func sessionLockKey(reservationID int64) string {
	return fmt.Sprintf("lock:webrtc:reservation:%d", reservationID)
}

// MemoryLocker offers the same contract as the Redis lock inside one process.
// The ttl is ignored; holders always release explicitly.
type MemoryLocker struct {
	keys *lock.Keyed

	mu       sync.Mutex
	releases map[int64]func()
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		keys:     lock.NewKeyed(),
		releases: make(map[int64]func()),
	}
}

func (l *MemoryLocker) AcquireSessionLock(_ context.Context, reservationID int64, _ time.Duration) (bool, error) {
	release, ok := l.keys.TryLock(sessionLockKey(reservationID))
	if !ok {
		return false, nil
	}
	l.mu.Lock()
	l.releases[reservationID] = release
	l.mu.Unlock()
	return true, nil
}

func (l *MemoryLocker) ReleaseSessionLock(_ context.Context, reservationID int64) error {
	l.mu.Lock()
	release, ok := l.releases[reservationID]
	delete(l.releases, reservationID)
	l.mu.Unlock()
	if ok {
		release()
	}
	return nil
}
