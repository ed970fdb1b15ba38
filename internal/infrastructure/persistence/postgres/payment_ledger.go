package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/payment"
	"github.com/yuzvak/starnotary-service/internal/pkg/generator"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

// PaymentLedger settles purchases against account_balances and records each
// settlement in payments so it can be reversed.
type PaymentLedger struct {
	conn    *Connection
	codeGen *generator.CodeGenerator
	log     *logger.Logger
}

func NewPaymentLedger(conn *Connection, log *logger.Logger) *PaymentLedger {
	return &PaymentLedger{
		conn:    conn,
		codeGen: generator.NewCodeGenerator(),
		log:     log,
	}
}

func (l *PaymentLedger) Deposit(ctx context.Context, account star.Account, amount star.Amount) error {
	if account.IsZero() {
		return domainErrors.ErrInvalidTarget
	}
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	query := `
		INSERT INTO account_balances (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account)
		DO UPDATE SET balance = account_balances.balance + EXCLUDED.balance, updated_at = NOW()
	`

	_, err := monitoring.InstrumentExec(ctx, l.conn.db, "UPSERT", "account_balances", query, account, amount)
	if hasSQLState(err, numericOutOfRange) {
		return fmt.Errorf("%w: account %s", domainErrors.ErrBalanceOverflow, account)
	}
	return err
}

func (l *PaymentLedger) Balance(ctx context.Context, account star.Account) (star.Amount, error) {
	query := `SELECT balance FROM account_balances WHERE account = $1`

	var balance int64
	row := monitoring.InstrumentQueryRow(ctx, l.conn.db, "SELECT", "account_balances", query, account)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return star.Amount(balance), nil
}

func (l *PaymentLedger) Settle(ctx context.Context, plan star.SalePlan) (receipt *star.Receipt, err error) {
	receiptID, err := l.codeGen.GenerateReceiptID(plan.StarID)
	if err != nil {
		return nil, fmt.Errorf("generate receipt id: %w", err)
	}

	tx, err := l.conn.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var balance int64
	row := monitoring.InstrumentQueryRow(ctx, tx, "SELECT", "account_balances",
		`SELECT balance FROM account_balances WHERE account = $1 FOR UPDATE`, plan.Buyer)
	if err = row.Scan(&balance); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if star.Amount(balance) < plan.Payment {
		err = fmt.Errorf("%w: buyer %s has %d, needs %d", payment.ErrInsufficientFunds, plan.Buyer, balance, plan.Payment)
		return nil, err
	}

	// The buyer's net debit is the price; the refund never leaves the account.
	if err = l.adjust(ctx, tx, plan.Buyer, -plan.Price); err != nil {
		return nil, err
	}
	if err = l.adjust(ctx, tx, plan.Seller, plan.Price); err != nil {
		return nil, err
	}

	_, err = monitoring.InstrumentExec(ctx, tx, "INSERT", "payments", `
		INSERT INTO payments (receipt_id, star_id, seller, buyer, price, payment, refund, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, receiptID, plan.StarID, plan.Seller, plan.Buyer, plan.Price, plan.Payment, plan.Refund)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	l.log.Debug("Payment settled", "receipt_id", receiptID, "star_id", plan.StarID, "price", plan.Price)
	return &star.Receipt{ID: receiptID, Plan: plan}, nil
}

func (l *PaymentLedger) Reverse(ctx context.Context, receipt *star.Receipt) (err error) {
	tx, err := l.conn.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	result, err := monitoring.InstrumentExec(ctx, tx, "UPDATE", "payments", `
		UPDATE payments SET reversed = TRUE, reversed_at = NOW()
		WHERE receipt_id = $1 AND reversed = FALSE
	`, receipt.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = payment.ErrUnknownReceipt
		return err
	}

	plan := receipt.Plan
	if err = l.adjust(ctx, tx, plan.Seller, -plan.Price); err != nil {
		return err
	}
	if err = l.adjust(ctx, tx, plan.Buyer, plan.Price); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	l.log.Warn("Payment reversed", "receipt_id", receipt.ID, "star_id", plan.StarID)
	return nil
}

func (l *PaymentLedger) adjust(ctx context.Context, tx *sql.Tx, account star.Account, delta star.Amount) error {
	query := `
		INSERT INTO account_balances (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account)
		DO UPDATE SET balance = account_balances.balance + EXCLUDED.balance, updated_at = NOW()
	`

	_, err := monitoring.InstrumentExec(ctx, tx, "UPSERT", "account_balances", query, account, delta)
	return err
}
