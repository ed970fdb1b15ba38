package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

type CoordinateIndexer interface {
	RebuildCoordinateIndex(ctx context.Context) (int, error)
}

// IndexScheduler rebuilds the coordinate filter at start and then on every
// tick, so entries lost by a failed write or a Redis restart come back.
type IndexScheduler struct {
	indexer  CoordinateIndexer
	logger   *logger.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewIndexScheduler(indexer CoordinateIndexer, logger *logger.Logger, interval time.Duration) *IndexScheduler {
	if interval <= 0 {
		interval = time.Hour
	}

	return &IndexScheduler{
		indexer:  indexer,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *IndexScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting coordinate index scheduler", "interval", s.interval.String())

	s.rebuild(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Coordinate index scheduler stopped")
			return
		case <-s.stopChan:
			s.logger.Info("Coordinate index scheduler stopped")
			return
		case <-ticker.C:
			s.rebuild(ctx)
		}
	}
}

func (s *IndexScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *IndexScheduler) rebuild(ctx context.Context) {
	start := time.Now()

	n, err := s.indexer.RebuildCoordinateIndex(ctx)
	if err != nil {
		s.logger.Error("Failed to rebuild coordinate index", "error", err, "loaded", n)
		return
	}

	s.logger.Info("Coordinate index rebuilt", "coordinates", n, "duration", time.Since(start).String())
}
