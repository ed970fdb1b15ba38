package use_cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
	"github.com/yuzvak/starnotary-service/internal/pkg/clock"
	"github.com/yuzvak/starnotary-service/internal/pkg/generator"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

type PurchaseResult struct {
	StarID    int64        `json:"star_id"`
	Seller    star.Account `json:"seller"`
	Buyer     star.Account `json:"buyer"`
	Price     star.Amount  `json:"price"`
	Refund    star.Amount  `json:"refund"`
	ReceiptID string       `json:"receipt_id"`
}

type MarketplaceUseCase struct {
	starRepo  ports.StarRepository
	cache     ports.Cache
	gateway   ports.PaymentGateway
	publisher ports.EventPublisher
	clock     clock.Clock
	codeGen   *generator.CodeGenerator
	log       *logger.Logger

	lockTimeout time.Duration
}

func NewMarketplaceUseCase(
	starRepo ports.StarRepository,
	cache ports.Cache,
	gateway ports.PaymentGateway,
	publisher ports.EventPublisher,
	clk clock.Clock,
	log *logger.Logger,
) *MarketplaceUseCase {
	return &MarketplaceUseCase{
		starRepo:    starRepo,
		cache:       cache,
		gateway:     gateway,
		publisher:   publisher,
		clock:       clk,
		codeGen:     generator.NewCodeGenerator(),
		log:         log,
		lockTimeout: defaultLockTimeout,
	}
}

func (uc *MarketplaceUseCase) WithLockTimeout(d time.Duration) *MarketplaceUseCase {
	if d > 0 {
		uc.lockTimeout = d
	}
	return uc
}

func (uc *MarketplaceUseCase) ListForSale(ctx context.Context, id int64, price star.Amount, caller star.Account) error {
	metrics := monitoring.NewOperationMetrics("list_for_sale")

	unlock, err := lockStar(ctx, uc.cache, uc.log, id, uc.lockTimeout)
	if err != nil {
		return metrics.Observe(err)
	}
	defer unlock()

	err = withRetry(ctx, uc.log, "list_for_sale", defaultRetryAttempts, func() error {
		return runInTx(ctx, uc.starRepo, func(tx ports.StarRepository) error {
			s, err := tx.GetStarByID(ctx, id)
			if err != nil {
				return err
			}

			if caller.IsZero() || s.Owner != caller {
				return domainErrors.ErrUnauthorized
			}

			if err := s.ListForSale(price); err != nil {
				return err
			}
			return tx.UpdateStar(ctx, s)
		})
	})
	if err != nil {
		return metrics.Observe(err)
	}

	monitoring.RecordListing()
	uc.log.Info("Star listed for sale", "star_id", id, "price", price)
	return nil
}

// GetSalePrice reports ErrNotListed both for unlisted and for unknown stars.
func (uc *MarketplaceUseCase) GetSalePrice(ctx context.Context, id int64) (star.Amount, error) {
	s, err := uc.starRepo.GetStarByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainErrors.ErrStarNotFound) {
			return 0, domainErrors.ErrNotListed
		}
		return 0, err
	}

	if !s.IsListed() {
		return 0, domainErrors.ErrNotListed
	}
	return *s.SalePrice, nil
}

// Buy settles a purchase as one unit. The star lock is held from planning
// until the ownership change commits, so any nested call on the same star
// fails with ErrItemLocked and cannot observe a half-applied sale.
func (uc *MarketplaceUseCase) Buy(ctx context.Context, id int64, buyer star.Account, payment star.Amount) (*PurchaseResult, error) {
	metrics := monitoring.NewOperationMetrics("buy")

	unlock, err := lockStar(ctx, uc.cache, uc.log, id, uc.lockTimeout)
	if err != nil {
		return nil, metrics.Observe(err)
	}
	defer unlock()

	tx, err := uc.starRepo.BeginTx(ctx)
	if err != nil {
		return nil, metrics.Observe(fmt.Errorf("failed to begin transaction: %w", err))
	}

	plan, err := uc.stageSale(ctx, tx, id, buyer, payment)
	if err != nil {
		_ = tx.RollbackTx(ctx)
		return nil, metrics.Observe(err)
	}

	receipt, err := uc.gateway.Settle(ctx, *plan)
	if err != nil {
		_ = tx.RollbackTx(ctx)
		uc.log.Error("Payment settlement failed", "error", err, "star_id", id, "buyer", buyer)
		return nil, metrics.Observe(fmt.Errorf("%w: %w", domainErrors.ErrPaymentFailed, err))
	}

	if err := tx.CommitTx(ctx); err != nil {
		uc.reverse(ctx, receipt)
		if isBusinessLogicError(err) {
			return nil, metrics.Observe(err)
		}
		return nil, metrics.Observe(fmt.Errorf("%w: %w", domainErrors.ErrTransactionFailed, err))
	}

	monitoring.RecordTransfer("sale")
	monitoring.RecordSale(int64(plan.Price))
	publishEvents(ctx, uc.publisher, uc.codeGen, uc.clock, uc.log,
		star.Event{Type: star.EventTransferred, StarID: id, From: plan.Seller, To: plan.Buyer},
		star.Event{Type: star.EventSold, StarID: id, From: plan.Seller, To: plan.Buyer, Amount: plan.Price},
	)

	uc.log.Info("Star sold",
		"star_id", id,
		"seller", plan.Seller,
		"buyer", plan.Buyer,
		"price", plan.Price,
		"refund", plan.Refund,
		"receipt_id", receipt.ID,
	)

	return &PurchaseResult{
		StarID:    id,
		Seller:    plan.Seller,
		Buyer:     plan.Buyer,
		Price:     plan.Price,
		Refund:    plan.Refund,
		ReceiptID: receipt.ID,
	}, nil
}

// stageSale computes the plan and stages the ownership change and sale record
// in tx. Nothing is visible until tx commits.
func (uc *MarketplaceUseCase) stageSale(ctx context.Context, tx ports.StarRepository, id int64, buyer star.Account, payment star.Amount) (*star.SalePlan, error) {
	s, err := tx.GetStarByID(ctx, id)
	if err != nil && !errors.Is(err, domainErrors.ErrStarNotFound) {
		return nil, err
	}

	plan, err := star.PlanSale(s, buyer, payment)
	if err != nil {
		return nil, err
	}

	if err := plan.Apply(s); err != nil {
		return nil, err
	}
	if err := tx.UpdateStar(ctx, s); err != nil {
		return nil, err
	}
	if err := tx.SaveSale(ctx, plan); err != nil {
		return nil, err
	}

	return plan, nil
}

func (uc *MarketplaceUseCase) reverse(ctx context.Context, receipt *star.Receipt) {
	monitoring.PaymentReversalsTotal.Inc()

	if err := uc.gateway.Reverse(context.WithoutCancel(ctx), receipt); err != nil {
		uc.log.Error("Failed to reverse payment", "error", err, "receipt_id", receipt.ID)
		return
	}
	uc.log.Warn("Payment reversed after failed commit", "receipt_id", receipt.ID)
}
