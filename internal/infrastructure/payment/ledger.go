package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/pkg/generator"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownReceipt    = errors.New("unknown or already reversed receipt")
)

// Ledger is an in-process account ledger. A settlement debits the full
// payment from the buyer, credits the price to the seller and credits the
// refund back to the buyer, all under one lock.
type Ledger struct {
	mu       sync.Mutex
	balances map[star.Account]star.Amount
	receipts map[string]star.Receipt
	codeGen  *generator.CodeGenerator
	log      *logger.Logger
}

func NewLedger(log *logger.Logger) *Ledger {
	return &Ledger{
		balances: make(map[star.Account]star.Amount),
		receipts: make(map[string]star.Receipt),
		codeGen:  generator.NewCodeGenerator(),
		log:      log,
	}
}

func (l *Ledger) Deposit(ctx context.Context, account star.Account, amount star.Amount) error {
	if account.IsZero() {
		return domainErrors.ErrInvalidTarget
	}
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[account] > math.MaxInt64-amount {
		return fmt.Errorf("%w: account %s holds %d", domainErrors.ErrBalanceOverflow, account, l.balances[account])
	}

	l.balances[account] += amount
	return nil
}

func (l *Ledger) Balance(ctx context.Context, account star.Account) (star.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[account], nil
}

func (l *Ledger) Settle(ctx context.Context, plan star.SalePlan) (*star.Receipt, error) {
	receiptID, err := l.codeGen.GenerateReceiptID(plan.StarID)
	if err != nil {
		return nil, fmt.Errorf("generate receipt id: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[plan.Buyer] < plan.Payment {
		return nil, fmt.Errorf("%w: buyer %s has %d, needs %d", ErrInsufficientFunds, plan.Buyer, l.balances[plan.Buyer], plan.Payment)
	}

	l.balances[plan.Buyer] -= plan.Payment
	l.balances[plan.Seller] += plan.Price
	l.balances[plan.Buyer] += plan.Refund

	receipt := star.Receipt{ID: receiptID, Plan: plan}
	l.receipts[receiptID] = receipt

	l.log.Debug("Payment settled",
		"receipt_id", receiptID,
		"star_id", plan.StarID,
		"seller", plan.Seller,
		"buyer", plan.Buyer,
		"price", plan.Price,
		"refund", plan.Refund,
	)

	return &receipt, nil
}

func (l *Ledger) Reverse(ctx context.Context, receipt *star.Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.receipts[receipt.ID]; !ok {
		return ErrUnknownReceipt
	}

	plan := receipt.Plan
	l.balances[plan.Seller] -= plan.Price
	l.balances[plan.Buyer] += plan.Price
	delete(l.receipts, receipt.ID)

	l.log.Warn("Payment reversed", "receipt_id", receipt.ID, "star_id", plan.StarID)
	return nil
}
