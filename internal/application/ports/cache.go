package ports

import (
	"context"
	"time"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
)

type Cache interface {
	AddCoordinate(ctx context.Context, c star.Coordinate) error
	MayContainCoordinate(ctx context.Context, c star.Coordinate) (bool, error)
	ResetCoordinates(ctx context.Context) error

	// DistributedLock takes key without waiting. The returned token
	// identifies this acquisition; ReleaseLock only deletes the lock while it
	// still carries that token.
	DistributedLock(ctx context.Context, key string, expiration time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}
