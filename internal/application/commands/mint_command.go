package commands

import (
	"context"
	"time"

	"github.com/yuzvak/starnotary-service/internal/application/use_cases"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

type MintCommand struct {
	ID          int64
	Name        string
	Description string
	RA          string
	Dec         string
	Mag         string
	Owner       star.Account
}

type MintResponse struct {
	ID       int64        `json:"id"`
	Owner    star.Account `json:"owner"`
	Metadata star.Info    `json:"metadata"`
	MintedAt time.Time    `json:"minted_at"`
	// CoordinateTaken is true when another star already carried the same
	// coordinates. It is informational only.
	CoordinateTaken bool `json:"coordinate_taken"`
}

type MintHandler struct {
	registry *use_cases.RegistryUseCase
	log      *logger.Logger
}

func NewMintHandler(registry *use_cases.RegistryUseCase, log *logger.Logger) *MintHandler {
	return &MintHandler{
		registry: registry,
		log:      log,
	}
}

func (h *MintHandler) Handle(ctx context.Context, cmd MintCommand) (*MintResponse, error) {
	coord := star.Coordinate{RA: cmd.RA, Dec: cmd.Dec, Mag: cmd.Mag}

	taken, err := h.registry.CoordinateExists(ctx, coord)
	if err != nil {
		h.log.Warn("Failed to check coordinates before mint", "error", err, "star_id", cmd.ID)
		taken = false
	}

	s, err := h.registry.Mint(ctx, use_cases.MintInput{
		ID:          cmd.ID,
		Name:        cmd.Name,
		Description: cmd.Description,
		RA:          cmd.RA,
		Dec:         cmd.Dec,
		Mag:         cmd.Mag,
		Owner:       cmd.Owner,
	})
	if err != nil {
		h.log.Error("Mint failed", "error", err.Error(), "star_id", cmd.ID)
		return nil, err
	}

	if taken {
		h.log.Info("Star minted on already registered coordinates", "star_id", s.ID, "coordinate", coord.Key())
	}

	return &MintResponse{
		ID:              s.ID,
		Owner:           s.Owner,
		Metadata:        s.Metadata.Info(),
		MintedAt:        s.MintedAt,
		CoordinateTaken: taken,
	}, nil
}
