package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
	"github.com/yuzvak/starnotary-service/internal/pkg/bloom"
)

const lockCleanupInterval = time.Minute

// Cache is the in-process counterpart of the Redis cache: item locks live in
// go-cache with a TTL and coordinates go into a local bloom filter.
type Cache struct {
	// lockMu makes the compare-and-delete in ReleaseLock atomic with Add.
	lockMu      sync.Mutex
	locks       *gocache.Cache
	coordinates *bloom.BloomFilter
}

func NewCache(expectedCoordinates uint64) *Cache {
	return &Cache{
		locks:       gocache.New(gocache.NoExpiration, lockCleanupInterval),
		coordinates: bloom.NewBloomFilterWithExpectedItems(expectedCoordinates, 0.01),
	}
}

func (c *Cache) AddCoordinate(ctx context.Context, coord star.Coordinate) error {
	c.coordinates.Add(coord.Key())
	return nil
}

func (c *Cache) MayContainCoordinate(ctx context.Context, coord star.Coordinate) (bool, error) {
	return c.coordinates.Contains(coord.Key()), nil
}

func (c *Cache) ResetCoordinates(ctx context.Context) error {
	c.coordinates.Clear()
	return nil
}

// DistributedLock mirrors SETNX: Add fails when an unexpired entry exists.
// The stored value is a fresh token for this acquisition.
func (c *Cache) DistributedLock(ctx context.Context, key string, expiration time.Duration) (string, bool, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	monitoring.RecordLockAttempt(key)

	token := uuid.NewString()

	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	if err := c.locks.Add(lockKey, token, expiration); err != nil {
		monitoring.RecordLockFailure(key, "already_locked")
		return "", false, nil
	}

	return token, true, nil
}

// ReleaseLock deletes the lock only if it still holds token. An expired lock
// that someone else has since taken is left alone.
func (c *Cache) ReleaseLock(ctx context.Context, key, token string) error {
	lockKey := fmt.Sprintf("lock:%s", key)

	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	current, found := c.locks.Get(lockKey)
	if found && current == token {
		c.locks.Delete(lockKey)
	}
	return nil
}
