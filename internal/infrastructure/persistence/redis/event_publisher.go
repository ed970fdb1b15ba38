package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

const defaultStreamMaxLen = 100000

// EventPublisher appends each event to a Redis stream as one entry with a
// JSON payload, in a single pipeline.
type EventPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *logger.Logger
}

func NewEventPublisher(conn *Connection, stream string, log *logger.Logger) *EventPublisher {
	return &EventPublisher{
		client: conn.GetClient(),
		stream: stream,
		maxLen: defaultStreamMaxLen,
		logger: log,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, events ...star.Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.Type, err)
		}

		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{
				"id":      ev.ID,
				"type":    string(ev.Type),
				"star_id": ev.StarID,
				"payload": payload,
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish events to %s: %w", p.stream, err)
	}

	p.logger.Debug("Events published", "stream", p.stream, "count", len(events))
	return nil
}

// Recent returns up to limit of the newest entries, oldest first.
func (p *EventPublisher) Recent(ctx context.Context, limit int) ([]star.Event, error) {
	entries, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]star.Event, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		raw, ok := entry.Values["payload"].(string)
		if !ok {
			continue
		}

		var ev star.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", entry.ID, err)
		}
		events = append(events, ev)
	}

	return events, nil
}
