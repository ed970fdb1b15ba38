package monitoring

import (
	"errors"

	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
)

var failureReasons = []struct {
	err    error
	reason string
}{
	{domainErrors.ErrDuplicateID, "duplicate_id"},
	{domainErrors.ErrStarNotFound, "not_found"},
	{domainErrors.ErrOwnerMismatch, "owner_mismatch"},
	{domainErrors.ErrUnauthorized, "unauthorized"},
	{domainErrors.ErrInvalidTarget, "invalid_target"},
	{domainErrors.ErrInvalidPrice, "invalid_price"},
	{domainErrors.ErrNotListed, "not_listed"},
	{domainErrors.ErrInsufficientPayment, "insufficient_payment"},
	{domainErrors.ErrPaymentFailed, "payment_failed"},
	{domainErrors.ErrItemLocked, "item_locked"},
}

// FailureReason maps an operation error to a low-cardinality metric label.
func FailureReason(err error) string {
	for _, fr := range failureReasons {
		if errors.Is(err, fr.err) {
			return fr.reason
		}
	}
	return "internal"
}

type OperationMetrics struct {
	operation string
}

func NewOperationMetrics(operation string) *OperationMetrics {
	return &OperationMetrics{
		operation: operation,
	}
}

// Observe records a failure for err, if any, and returns err unchanged.
func (m *OperationMetrics) Observe(err error) error {
	if err != nil {
		RecordFailure(m.operation, FailureReason(err))
	}
	return err
}
