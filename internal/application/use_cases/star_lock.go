package use_cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

const (
	defaultLockTimeout   = 30 * time.Second
	defaultRetryAttempts = 2
)

func starLockKey(id int64) string {
	return fmt.Sprintf("star:%d", id)
}

// lockStar takes the per-star lock without waiting. A held lock means another
// mutation of the same star is in flight, including a re-entrant call made
// from inside a payment settlement.
func lockStar(ctx context.Context, cache ports.Cache, log *logger.Logger, id int64, timeout time.Duration) (func(), error) {
	lockKey := starLockKey(id)

	token, locked, err := cache.DistributedLock(ctx, lockKey, timeout)
	if err != nil {
		log.Error("Failed to acquire lock", "error", err, "lock_key", lockKey)
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, domainErrors.ErrItemLocked
	}

	stopTimer := monitoring.TimeLock(lockKey)
	return func() {
		stopTimer()
		if err := cache.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			log.Error("Failed to release lock", "error", err, "lock_key", lockKey)
		}
	}, nil
}

// runInTx applies fn inside one repository transaction. Errors roll back.
func runInTx(ctx context.Context, repo ports.StarRepository, fn func(tx ports.StarRepository) error) (err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.RollbackTx(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.CommitTx(ctx); err != nil {
		if isBusinessLogicError(err) {
			return err
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// withRetry repeats op on infrastructure errors such as serialization
// failures. Domain rejections are returned at once.
func withRetry(ctx context.Context, log *logger.Logger, operation string, attempts int, op func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = op()
		if err == nil || isBusinessLogicError(err) {
			return err
		}

		log.Warn("Operation attempt failed", "operation", operation, "attempt", attempt+1, "error", err.Error())

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond * time.Duration(100*(attempt+1))):
			}
		}
	}
	return err
}

func isBusinessLogicError(err error) bool {
	for _, target := range []error{
		domainErrors.ErrDuplicateID,
		domainErrors.ErrStarNotFound,
		domainErrors.ErrOwnerMismatch,
		domainErrors.ErrUnauthorized,
		domainErrors.ErrInvalidTarget,
		domainErrors.ErrInvalidPrice,
		domainErrors.ErrNotListed,
		domainErrors.ErrInsufficientPayment,
		domainErrors.ErrPaymentFailed,
		domainErrors.ErrItemLocked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
