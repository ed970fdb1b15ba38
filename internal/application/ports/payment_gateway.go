package ports

import (
	"context"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
)

// PaymentGateway delivers the price to the seller and the refund to the buyer
// as one unit. Settle either fully succeeds or has no effect.
type PaymentGateway interface {
	Settle(ctx context.Context, plan star.SalePlan) (*star.Receipt, error)
	Reverse(ctx context.Context, receipt *star.Receipt) error
}

// AccountLedger is a PaymentGateway that also holds spendable balances.
type AccountLedger interface {
	PaymentGateway
	Deposit(ctx context.Context, account star.Account, amount star.Amount) error
	Balance(ctx context.Context, account star.Account) (star.Amount, error)
}
