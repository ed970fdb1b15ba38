package commands

import (
	"context"

	"github.com/yuzvak/starnotary-service/internal/application/use_cases"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

type BuyCommand struct {
	StarID  int64
	Buyer   star.Account
	Payment star.Amount
}

type BuyResponse struct {
	Success bool                      `json:"success"`
	Sale    *use_cases.PurchaseResult `json:"sale"`
}

type BuyHandler struct {
	marketplace *use_cases.MarketplaceUseCase
	log         *logger.Logger
}

func NewBuyHandler(marketplace *use_cases.MarketplaceUseCase, log *logger.Logger) *BuyHandler {
	return &BuyHandler{
		marketplace: marketplace,
		log:         log,
	}
}

func (h *BuyHandler) Handle(ctx context.Context, cmd BuyCommand) (*BuyResponse, error) {
	h.log.Info("Processing buy request", "star_id", cmd.StarID, "buyer", cmd.Buyer, "payment", cmd.Payment)

	result, err := h.marketplace.Buy(ctx, cmd.StarID, cmd.Buyer, cmd.Payment)
	if err != nil {
		h.log.Error("Buy failed", "error", err.Error(), "star_id", cmd.StarID, "buyer", cmd.Buyer)
		return nil, err
	}

	h.log.Info("Buy completed successfully",
		"star_id", cmd.StarID,
		"buyer", cmd.Buyer,
		"receipt_id", result.ReceiptID,
	)

	return &BuyResponse{
		Success: true,
		Sale:    result,
	}, nil
}
