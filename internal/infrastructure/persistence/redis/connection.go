package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/starnotary-service/internal/config"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
)

type Connection struct {
	client *redis.Client
}

func NewConnection(cfg config.RedisConfig) (*Connection, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 100,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewConnectionFromClient(client), nil
}

// NewConnectionFromClient wraps an existing client and installs the metrics hook.
func NewConnectionFromClient(client *redis.Client) *Connection {
	return &Connection{
		client: monitoring.InstrumentRedisClient(client),
	}
}

func (c *Connection) Close() error {
	return c.client.Close()
}

func (c *Connection) GetClient() *redis.Client {
	return c.client
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
