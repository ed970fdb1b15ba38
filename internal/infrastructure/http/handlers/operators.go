package handlers

import (
	"net/http"

	"github.com/yuzvak/starnotary-service/internal/application/use_cases"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/middleware"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/response"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

type OperatorHandler struct {
	registry *use_cases.RegistryUseCase
	log      *logger.Logger
}

func NewOperatorHandler(registry *use_cases.RegistryUseCase, log *logger.Logger) *OperatorHandler {
	return &OperatorHandler{
		registry: registry,
		log:      log,
	}
}

type OperatorRequest struct {
	Operator star.Account `json:"operator"`
	Approved bool         `json:"approved"`
}

type OperatorResponse struct {
	Owner    star.Account `json:"owner"`
	Operator star.Account `json:"operator"`
	Approved bool         `json:"approved"`
}

func (h *OperatorHandler) HandleSetApprovalForAll(w http.ResponseWriter, r *http.Request) {
	var req OperatorRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"body": err.Error()})
		return
	}

	caller := middleware.AccountFrom(r.Context())
	if err := h.registry.SetApprovalForAll(r.Context(), req.Operator, req.Approved, caller); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, OperatorResponse{Owner: caller, Operator: req.Operator, Approved: req.Approved})
}

func (h *OperatorHandler) HandleIsApprovedForAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner := star.Account(q.Get("owner"))
	operator := star.Account(q.Get("operator"))

	errs := make(map[string]string)
	if owner.IsZero() {
		errs["owner"] = "owner is required"
	}
	if operator.IsZero() {
		errs["operator"] = "operator is required"
	}
	if len(errs) > 0 {
		response.WriteValidationError(w, "Validation failed", errs)
		return
	}

	approved, err := h.registry.IsApprovedForAll(r.Context(), owner, operator)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, OperatorResponse{Owner: owner, Operator: operator, Approved: approved})
}
