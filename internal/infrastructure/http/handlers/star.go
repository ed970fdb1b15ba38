package handlers

import (
	"net/http"

	"github.com/yuzvak/starnotary-service/internal/application/commands"
	"github.com/yuzvak/starnotary-service/internal/application/use_cases"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/middleware"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/response"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

type StarHandler struct {
	registry    *use_cases.RegistryUseCase
	mintHandler *commands.MintHandler
	log         *logger.Logger
}

func NewStarHandler(registry *use_cases.RegistryUseCase, log *logger.Logger) *StarHandler {
	return &StarHandler{
		registry:    registry,
		mintHandler: commands.NewMintHandler(registry, log),
		log:         log,
	}
}

type MintRequest struct {
	ID          *int64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RA          string `json:"ra"`
	Dec         string `json:"dec"`
	Mag         string `json:"mag"`
}

type ApproveRequest struct {
	Delegate star.Account `json:"delegate"`
}

type TransferRequest struct {
	From star.Account `json:"from"`
	To   star.Account `json:"to"`
}

type OwnerResponse struct {
	ID    int64        `json:"id"`
	Owner star.Account `json:"owner"`
}

type ApprovedResponse struct {
	ID       int64        `json:"id"`
	Approved star.Account `json:"approved"`
}

type CoordinateResponse struct {
	Exists bool `json:"exists"`
}

func (h *StarHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"body": err.Error()})
		return
	}

	if req.ID == nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": "id is required"})
		return
	}

	resp, err := h.mintHandler.Handle(r.Context(), commands.MintCommand{
		ID:          *req.ID,
		Name:        req.Name,
		Description: req.Description,
		RA:          req.RA,
		Dec:         req.Dec,
		Mag:         req.Mag,
		Owner:       middleware.AccountFrom(r.Context()),
	})
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteCreated(w, resp, "Star minted")
}

func (h *StarHandler) HandleGetMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": err.Error()})
		return
	}

	info, err := h.registry.GetMetadata(r.Context(), id)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, info)
}

func (h *StarHandler) HandleOwnerOf(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": err.Error()})
		return
	}

	owner, err := h.registry.OwnerOf(r.Context(), id)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, OwnerResponse{ID: id, Owner: owner})
}

func (h *StarHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": err.Error()})
		return
	}

	var req ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"body": err.Error()})
		return
	}

	if err := h.registry.Approve(r.Context(), id, req.Delegate, middleware.AccountFrom(r.Context())); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, ApprovedResponse{ID: id, Approved: req.Delegate}, "Delegate approved")
}

func (h *StarHandler) HandleGetApproved(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": err.Error()})
		return
	}

	approved, err := h.registry.GetApproved(r.Context(), id)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, ApprovedResponse{ID: id, Approved: approved})
}

func (h *StarHandler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": err.Error()})
		return
	}

	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"body": err.Error()})
		return
	}

	caller := middleware.AccountFrom(r.Context())
	if err := h.registry.Transfer(r.Context(), id, req.From, req.To, caller); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, OwnerResponse{ID: id, Owner: req.To}, "Star transferred")
}

func (h *StarHandler) HandleCoordinateExists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	exists, err := h.registry.CoordinateExists(r.Context(), star.Coordinate{
		RA:  q.Get("ra"),
		Dec: q.Get("dec"),
		Mag: q.Get("mag"),
	})
	if err != nil {
		h.log.Error("Coordinate lookup failed", "error", err)
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, CoordinateResponse{Exists: exists})
}
