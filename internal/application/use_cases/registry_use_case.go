package use_cases

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
	"github.com/yuzvak/starnotary-service/internal/pkg/clock"
	"github.com/yuzvak/starnotary-service/internal/pkg/generator"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

const coordinatePageSize = 1000

type MintInput struct {
	ID          int64
	Name        string
	Description string
	RA          string
	Dec         string
	Mag         string
	Owner       star.Account
}

// RegistryUseCase covers minting, ownership, approvals and the coordinate index.
type RegistryUseCase struct {
	starRepo  ports.StarRepository
	cache     ports.Cache
	publisher ports.EventPublisher
	clock     clock.Clock
	codeGen   *generator.CodeGenerator
	log       *logger.Logger

	lockTimeout   time.Duration
	retryAttempts int

	// coordinateFilterReady is false when the bloom filter may be missing
	// entries; lookups then go straight to the repository.
	coordinateFilterReady atomic.Bool
}

func NewRegistryUseCase(
	starRepo ports.StarRepository,
	cache ports.Cache,
	publisher ports.EventPublisher,
	clk clock.Clock,
	log *logger.Logger,
) *RegistryUseCase {
	uc := &RegistryUseCase{
		starRepo:      starRepo,
		cache:         cache,
		publisher:     publisher,
		clock:         clk,
		codeGen:       generator.NewCodeGenerator(),
		log:           log,
		lockTimeout:   defaultLockTimeout,
		retryAttempts: defaultRetryAttempts,
	}
	return uc
}

// WithLockTimeout sets how long a per-star lock may be held before it expires.
func (uc *RegistryUseCase) WithLockTimeout(d time.Duration) *RegistryUseCase {
	if d > 0 {
		uc.lockTimeout = d
	}
	return uc
}

func (uc *RegistryUseCase) Mint(ctx context.Context, in MintInput) (*star.Star, error) {
	metrics := monitoring.NewOperationMetrics("mint")

	s, err := star.NewStar(in.ID, in.Owner, star.Metadata{
		Name:        in.Name,
		Description: in.Description,
		Coordinate:  star.Coordinate{RA: in.RA, Dec: in.Dec, Mag: in.Mag},
	}, uc.clock.Now())
	if err != nil {
		return nil, metrics.Observe(err)
	}

	unlock, err := lockStar(ctx, uc.cache, uc.log, in.ID, uc.lockTimeout)
	if err != nil {
		return nil, metrics.Observe(err)
	}
	defer unlock()

	err = withRetry(ctx, uc.log, "mint", uc.retryAttempts, func() error {
		return runInTx(ctx, uc.starRepo, func(tx ports.StarRepository) error {
			return tx.CreateStar(ctx, s)
		})
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateID) {
			uc.log.Warn("Mint rejected, id already exists", "star_id", in.ID)
		}
		return nil, metrics.Observe(err)
	}

	if err := uc.cache.AddCoordinate(ctx, s.Metadata.Coordinate); err != nil {
		uc.coordinateFilterReady.Store(false)
		uc.log.Warn("Failed to add coordinate to filter", "error", err, "star_id", s.ID)
	}

	monitoring.RecordMint()
	uc.publish(ctx, star.Event{Type: star.EventMinted, StarID: s.ID, To: s.Owner})

	uc.log.Info("Star minted", "star_id", s.ID, "owner", s.Owner)
	return s, nil
}

func (uc *RegistryUseCase) OwnerOf(ctx context.Context, id int64) (star.Account, error) {
	s, err := uc.starRepo.GetStarByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.Owner, nil
}

func (uc *RegistryUseCase) GetMetadata(ctx context.Context, id int64) (star.Info, error) {
	s, err := uc.starRepo.GetStarByID(ctx, id)
	if err != nil {
		return star.Info{}, err
	}
	return s.Metadata.Info(), nil
}

func (uc *RegistryUseCase) BalanceOf(ctx context.Context, account star.Account) (int, error) {
	if account.IsZero() {
		return 0, domainErrors.ErrInvalidTarget
	}
	return uc.starRepo.CountStarsByOwner(ctx, account)
}

// CoordinateExists is advisory: Mint never consults it.
func (uc *RegistryUseCase) CoordinateExists(ctx context.Context, c star.Coordinate) (bool, error) {
	if uc.coordinateFilterReady.Load() {
		maybe, err := uc.cache.MayContainCoordinate(ctx, c)
		if err != nil {
			uc.log.Warn("Coordinate filter check failed", "error", err)
		} else if !maybe {
			return false, nil
		}
	}

	return uc.starRepo.CoordinateExists(ctx, c)
}

// RebuildCoordinateIndex reloads every registered coordinate into the filter.
func (uc *RegistryUseCase) RebuildCoordinateIndex(ctx context.Context) (int, error) {
	uc.coordinateFilterReady.Store(false)

	if err := uc.cache.ResetCoordinates(ctx); err != nil {
		return 0, fmt.Errorf("reset coordinate filter: %w", err)
	}

	total := 0
	for offset := 0; ; offset += coordinatePageSize {
		coords, err := uc.starRepo.ListCoordinates(ctx, coordinatePageSize, offset)
		if err != nil {
			return total, fmt.Errorf("list coordinates: %w", err)
		}

		for _, c := range coords {
			if err := uc.cache.AddCoordinate(ctx, c); err != nil {
				return total, fmt.Errorf("add coordinate: %w", err)
			}
		}
		total += len(coords)

		if len(coords) < coordinatePageSize {
			break
		}
	}

	uc.coordinateFilterReady.Store(true)
	return total, nil
}

func (uc *RegistryUseCase) Approve(ctx context.Context, id int64, delegate, caller star.Account) error {
	metrics := monitoring.NewOperationMetrics("approve")

	unlock, err := lockStar(ctx, uc.cache, uc.log, id, uc.lockTimeout)
	if err != nil {
		return metrics.Observe(err)
	}
	defer unlock()

	var owner star.Account
	err = withRetry(ctx, uc.log, "approve", uc.retryAttempts, func() error {
		return runInTx(ctx, uc.starRepo, func(tx ports.StarRepository) error {
			s, err := tx.GetStarByID(ctx, id)
			if err != nil {
				return err
			}

			isOperator, err := tx.IsOperator(ctx, s.Owner, caller)
			if err != nil {
				return err
			}
			if !star.CanApprove(caller, s.Owner, isOperator) {
				return domainErrors.ErrUnauthorized
			}

			if err := s.Approve(delegate); err != nil {
				return err
			}
			owner = s.Owner
			return tx.UpdateStar(ctx, s)
		})
	})
	if err != nil {
		return metrics.Observe(err)
	}

	monitoring.RecordApproval("delegate")
	uc.publish(ctx, star.Event{Type: star.EventApproval, StarID: id, From: owner, To: delegate})
	return nil
}

func (uc *RegistryUseCase) GetApproved(ctx context.Context, id int64) (star.Account, error) {
	s, err := uc.starRepo.GetStarByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.Approved, nil
}

func (uc *RegistryUseCase) SetApprovalForAll(ctx context.Context, operator star.Account, approved bool, caller star.Account) error {
	metrics := monitoring.NewOperationMetrics("set_approval_for_all")

	if operator.IsZero() || caller.IsZero() || operator == caller {
		return metrics.Observe(domainErrors.ErrInvalidTarget)
	}

	approval := star.OperatorApproval{Owner: caller, Operator: operator, Approved: approved}
	err := withRetry(ctx, uc.log, "set_approval_for_all", uc.retryAttempts, func() error {
		return runInTx(ctx, uc.starRepo, func(tx ports.StarRepository) error {
			return tx.SetOperatorApproval(ctx, approval)
		})
	})
	if err != nil {
		return metrics.Observe(err)
	}

	monitoring.RecordApproval("operator")
	uc.publish(ctx, star.Event{Type: star.EventApprovalForAll, From: caller, To: operator, Approved: approved})
	return nil
}

func (uc *RegistryUseCase) IsApprovedForAll(ctx context.Context, owner, operator star.Account) (bool, error) {
	return uc.starRepo.IsOperator(ctx, owner, operator)
}

func (uc *RegistryUseCase) Transfer(ctx context.Context, id int64, from, to, caller star.Account) error {
	metrics := monitoring.NewOperationMetrics("transfer")

	unlock, err := lockStar(ctx, uc.cache, uc.log, id, uc.lockTimeout)
	if err != nil {
		return metrics.Observe(err)
	}
	defer unlock()

	err = withRetry(ctx, uc.log, "transfer", uc.retryAttempts, func() error {
		return runInTx(ctx, uc.starRepo, func(tx ports.StarRepository) error {
			s, err := tx.GetStarByID(ctx, id)
			if err != nil {
				return err
			}

			if s.Owner != from {
				return domainErrors.ErrOwnerMismatch
			}

			isOperator, err := tx.IsOperator(ctx, from, caller)
			if err != nil {
				return err
			}
			if !star.IsAuthorized(caller, from, s.Approved, isOperator) {
				return domainErrors.ErrUnauthorized
			}

			if err := s.TransferTo(to); err != nil {
				return err
			}
			return tx.UpdateStar(ctx, s)
		})
	})
	if err != nil {
		return metrics.Observe(err)
	}

	monitoring.RecordTransfer("direct")
	uc.publish(ctx, star.Event{Type: star.EventTransferred, StarID: id, From: from, To: to})

	uc.log.Info("Star transferred", "star_id", id, "from", from, "to", to, "caller", caller)
	return nil
}

func (uc *RegistryUseCase) publish(ctx context.Context, events ...star.Event) {
	publishEvents(ctx, uc.publisher, uc.codeGen, uc.clock, uc.log, events...)
}

// publishEvents stamps and publishes observations of a committed operation.
// A publish failure is logged; the operation itself already took effect.
func publishEvents(ctx context.Context, publisher ports.EventPublisher, codeGen *generator.CodeGenerator, clk clock.Clock, log *logger.Logger, events ...star.Event) {
	now := clk.Now()
	for i := range events {
		events[i].ID = codeGen.GenerateEventID()
		events[i].At = now
	}

	if err := publisher.Publish(ctx, events...); err != nil {
		log.Error("Failed to publish events", "error", err, "count", len(events))
	}
}
