package events

import (
	"context"
	"sync"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

// Recorder keeps the most recent events in memory and logs each one.
type Recorder struct {
	mu     sync.RWMutex
	events []star.Event
	limit  int
	log    *logger.Logger
}

func NewRecorder(limit int, log *logger.Logger) *Recorder {
	return &Recorder{
		limit: limit,
		log:   log,
	}
}

func (r *Recorder) Publish(ctx context.Context, events ...star.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range events {
		r.log.Info("Star event",
			"event_id", ev.ID,
			"type", string(ev.Type),
			"star_id", ev.StarID,
			"from", ev.From,
			"to", ev.To,
			"amount", ev.Amount,
		)
		r.events = append(r.events, ev)
	}

	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append([]star.Event(nil), r.events[len(r.events)-r.limit:]...)
	}

	return nil
}

func (r *Recorder) Events() []star.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]star.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Recent returns up to limit of the newest events, oldest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]star.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := 0
	if limit > 0 && len(r.events) > limit {
		start = len(r.events) - limit
	}

	out := make([]star.Event, len(r.events)-start)
	copy(out, r.events[start:])
	return out, nil
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []star.EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]star.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
