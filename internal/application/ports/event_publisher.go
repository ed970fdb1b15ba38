package ports

import (
	"context"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
)

type EventPublisher interface {
	Publish(ctx context.Context, events ...star.Event) error
}

type EventReader interface {
	Recent(ctx context.Context, limit int) ([]star.Event, error)
}
