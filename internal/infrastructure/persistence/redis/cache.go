package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/bloom"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

const coordinateFilterKey = "bloom:star_coordinates"

// Cache holds item locks and the shared coordinate filter in Redis.
type Cache struct {
	client      *redis.Client
	bloomFilter *bloom.RedisBloomFilter
	logger      *logger.Logger

	releaseScript *redis.Script
}

func NewCache(conn *Connection, expectedCoordinates uint64, log *logger.Logger) *Cache {
	client := conn.GetClient()

	return &Cache{
		client:        client,
		bloomFilter:   bloom.NewRedisBloomFilterWithExpectedItems(client, coordinateFilterKey, expectedCoordinates, 0.01),
		logger:        log,
		releaseScript: redis.NewScript(releaseLuaScript),
	}
}

func (c *Cache) AddCoordinate(ctx context.Context, coord star.Coordinate) error {
	return c.bloomFilter.Add(ctx, coord.Key())
}

func (c *Cache) MayContainCoordinate(ctx context.Context, coord star.Coordinate) (bool, error) {
	return c.bloomFilter.Contains(ctx, coord.Key())
}

func (c *Cache) ResetCoordinates(ctx context.Context) error {
	return c.bloomFilter.Clear(ctx)
}

// DistributedLock writes a fresh token per acquisition as the lock value.
func (c *Cache) DistributedLock(ctx context.Context, key string, expiration time.Duration) (string, bool, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	monitoring.RecordLockAttempt(key)

	token := uuid.NewString()

	result, err := c.client.SetNX(ctx, lockKey, token, expiration).Result()
	if err != nil {
		monitoring.RecordLockFailure(key, "redis_error")
		return "", false, err
	}
	if !result {
		monitoring.RecordLockFailure(key, "already_locked")
		return "", false, nil
	}
	return token, true, nil
}

func (c *Cache) ReleaseLock(ctx context.Context, key, token string) error {
	lockKey := fmt.Sprintf("lock:%s", key)

	released, err := c.releaseScript.Run(ctx, c.client, []string{lockKey}, token).Int()
	if err != nil {
		return err
	}
	if released == 0 {
		c.logger.Warn("Lock expired or taken over before release", "lock_key", lockKey)
	}
	return nil
}

const releaseLuaScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`
