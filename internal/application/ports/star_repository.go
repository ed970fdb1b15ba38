package ports

import (
	"context"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
)

type StarRepository interface {
	GetStarByID(ctx context.Context, id int64) (*star.Star, error)
	CreateStar(ctx context.Context, s *star.Star) error
	UpdateStar(ctx context.Context, s *star.Star) error
	CountStarsByOwner(ctx context.Context, owner star.Account) (int, error)

	CoordinateExists(ctx context.Context, c star.Coordinate) (bool, error)
	ListCoordinates(ctx context.Context, limit, offset int) ([]star.Coordinate, error)

	SetOperatorApproval(ctx context.Context, approval star.OperatorApproval) error
	IsOperator(ctx context.Context, owner, operator star.Account) (bool, error)

	SaveSale(ctx context.Context, plan *star.SalePlan) error

	BeginTx(ctx context.Context) (StarRepository, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}
