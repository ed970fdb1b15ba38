package handlers

import (
	"net/http"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	"github.com/yuzvak/starnotary-service/internal/application/use_cases"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/response"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

type AccountHandler struct {
	registry *use_cases.RegistryUseCase
	ledger   ports.AccountLedger
	log      *logger.Logger
}

func NewAccountHandler(registry *use_cases.RegistryUseCase, ledger ports.AccountLedger, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		registry: registry,
		ledger:   ledger,
		log:      log,
	}
}

type BalanceResponse struct {
	Account star.Account `json:"account"`
	Stars   int          `json:"stars"`
}

type FundsResponse struct {
	Account star.Account `json:"account"`
	Funds   star.Amount  `json:"funds"`
}

type DepositRequest struct {
	Amount star.Amount `json:"amount"`
}

func (h *AccountHandler) HandleBalanceOf(w http.ResponseWriter, r *http.Request) {
	account := star.Account(r.PathValue("account"))

	count, err := h.registry.BalanceOf(r.Context(), account)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, BalanceResponse{Account: account, Stars: count})
}

func (h *AccountHandler) HandleGetFunds(w http.ResponseWriter, r *http.Request) {
	account := star.Account(r.PathValue("account"))

	funds, err := h.ledger.Balance(r.Context(), account)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, FundsResponse{Account: account, Funds: funds})
}

func (h *AccountHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	account := star.Account(r.PathValue("account"))

	var req DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"body": err.Error()})
		return
	}
	if req.Amount <= 0 {
		response.WriteValidationError(w, "Validation failed", map[string]string{"amount": "amount must be positive"})
		return
	}

	if err := h.ledger.Deposit(r.Context(), account, req.Amount); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	funds, err := h.ledger.Balance(r.Context(), account)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	h.log.Info("Funds deposited", "account", account, "amount", req.Amount)
	response.WriteSuccess(w, FundsResponse{Account: account, Funds: funds}, "Funds deposited")
}
