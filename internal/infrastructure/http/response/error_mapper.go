package response

import (
	"errors"
	"net/http"

	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
)

type ErrorMapping struct {
	Err        error
	HTTPStatus int
	Status     Status
	Message    string
}

// errorMappings is checked in order; a wrapped error takes the first match.
var errorMappings = []ErrorMapping{
	{
		Err:        domainErrors.ErrStarNotFound,
		HTTPStatus: http.StatusNotFound,
		Status:     StatusNotFound,
		Message:    "Star not found",
	},
	{
		Err:        domainErrors.ErrNotListed,
		HTTPStatus: http.StatusNotFound,
		Status:     StatusNotFound,
		Message:    "Star is not for sale",
	},
	{
		Err:        domainErrors.ErrOwnerMismatch,
		HTTPStatus: http.StatusForbidden,
		Status:     StatusForbidden,
		Message:    "From account does not own the star",
	},
	{
		Err:        domainErrors.ErrUnauthorized,
		HTTPStatus: http.StatusForbidden,
		Status:     StatusForbidden,
		Message:    "Caller is not allowed to perform this operation",
	},
	{
		Err:        domainErrors.ErrDuplicateID,
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Star already exists",
	},
	{
		Err:        domainErrors.ErrItemLocked,
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Another operation on this star is in progress",
	},
	{
		Err:        domainErrors.ErrInvalidTarget,
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Invalid target account",
	},
	{
		Err:        domainErrors.ErrInvalidPrice,
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Price must be greater than zero",
	},
	{
		Err:        domainErrors.ErrBalanceOverflow,
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Deposit exceeds the maximum balance",
	},
	{
		Err:        domainErrors.ErrInsufficientPayment,
		HTTPStatus: http.StatusPaymentRequired,
		Status:     StatusPaymentRequired,
		Message:    "Payment is below the sale price",
	},
	{
		Err:        domainErrors.ErrPaymentFailed,
		HTTPStatus: http.StatusPaymentRequired,
		Status:     StatusPaymentRequired,
		Message:    "Payment could not be settled",
	},
	{
		Err:        domainErrors.ErrTransactionFailed,
		HTTPStatus: http.StatusInternalServerError,
		Status:     StatusInternalError,
		Message:    "Transaction failed",
	},
}

func MapDomainError(err error) (int, *ErrorResponse) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.Err) {
			return mapping.HTTPStatus, Error(mapping.Status, mapping.Message, err.Error())
		}
	}
	return http.StatusInternalServerError, Error(StatusInternalError, "Internal server error")
}

func WriteDomainError(w http.ResponseWriter, err error) {
	statusCode, errorResponse := MapDomainError(err)
	WriteJSON(w, statusCode, errorResponse)
}
