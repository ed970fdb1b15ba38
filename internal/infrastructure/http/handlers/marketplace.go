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

type MarketplaceHandler struct {
	marketplace *use_cases.MarketplaceUseCase
	buyHandler  *commands.BuyHandler
	log         *logger.Logger
}

func NewMarketplaceHandler(marketplace *use_cases.MarketplaceUseCase, log *logger.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{
		marketplace: marketplace,
		buyHandler:  commands.NewBuyHandler(marketplace, log),
		log:         log,
	}
}

type ListForSaleRequest struct {
	Price star.Amount `json:"price"`
}

type BuyRequest struct {
	Payment star.Amount `json:"payment"`
}

type SalePriceResponse struct {
	ID    int64       `json:"id"`
	Price star.Amount `json:"price"`
}

func (h *MarketplaceHandler) HandleListForSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": err.Error()})
		return
	}

	var req ListForSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"body": err.Error()})
		return
	}

	if err := h.marketplace.ListForSale(r.Context(), id, req.Price, middleware.AccountFrom(r.Context())); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, SalePriceResponse{ID: id, Price: req.Price}, "Star listed for sale")
}

func (h *MarketplaceHandler) HandleGetSalePrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": err.Error()})
		return
	}

	price, err := h.marketplace.GetSalePrice(r.Context(), id)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, SalePriceResponse{ID: id, Price: price})
}

func (h *MarketplaceHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"id": err.Error()})
		return
	}

	var req BuyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"body": err.Error()})
		return
	}

	result, err := h.buyHandler.Handle(r.Context(), commands.BuyCommand{
		StarID:  id,
		Buyer:   middleware.AccountFrom(r.Context()),
		Payment: req.Payment,
	})
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, result, "Star purchased")
}
