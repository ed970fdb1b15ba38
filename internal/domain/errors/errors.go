package errors

import (
	"errors"
)

var (
	ErrDuplicateID   = errors.New("star id already minted")
	ErrStarNotFound  = errors.New("star not found")
	ErrOwnerMismatch = errors.New("from account is not the star owner")
	ErrUnauthorized  = errors.New("caller is not owner, approved delegate or operator")
	ErrInvalidTarget = errors.New("invalid target account")

	ErrInvalidPrice        = errors.New("sale price must be greater than zero")
	ErrNotListed           = errors.New("star is not listed for sale")
	ErrInsufficientPayment = errors.New("payment is below the sale price")
	ErrPaymentFailed       = errors.New("payment settlement failed")
	ErrBalanceOverflow     = errors.New("deposit would overflow the account balance")

	ErrItemLocked = errors.New("another operation is in progress for this star")

	ErrTransactionFailed = errors.New("transaction failed")
)
