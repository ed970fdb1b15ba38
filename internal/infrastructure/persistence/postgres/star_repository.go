package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
)

const (
	uniqueViolation   = "23505"
	numericOutOfRange = "22003"
)

type StarRepository struct {
	db   *sql.DB
	tx   *sql.Tx
	isTx bool
}

func NewStarRepository(conn *Connection) *StarRepository {
	return &StarRepository{
		db:   conn.GetDB(),
		isTx: false,
	}
}

func (r *StarRepository) querier() monitoring.Querier {
	if r.isTx {
		return r.tx
	}
	return r.db
}

// GetStarByID locks the row when called inside a transaction.
func (r *StarRepository) GetStarByID(ctx context.Context, id int64) (*star.Star, error) {
	query := `
		SELECT id, owner, name, description, right_ascension, declination, magnitude,
			approved, sale_price, minted_at
		FROM stars
		WHERE id = $1
	`
	if r.isTx {
		query += " FOR UPDATE"
	}

	var s star.Star
	var salePrice sql.NullInt64

	row := monitoring.InstrumentQueryRow(ctx, r.querier(), "SELECT", "stars", query, id)
	err := row.Scan(
		&s.ID, &s.Owner, &s.Metadata.Name, &s.Metadata.Description,
		&s.Metadata.Coordinate.RA, &s.Metadata.Coordinate.Dec, &s.Metadata.Coordinate.Mag,
		&s.Approved, &salePrice, &s.MintedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.ErrStarNotFound
		}
		return nil, err
	}

	if salePrice.Valid {
		price := star.Amount(salePrice.Int64)
		s.SalePrice = &price
	}

	return &s, nil
}

func (r *StarRepository) CreateStar(ctx context.Context, s *star.Star) error {
	if err := s.Validate(); err != nil {
		return err
	}

	insertStar := `
		INSERT INTO stars (id, owner, name, description, right_ascension, declination, magnitude,
			approved, sale_price, minted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	insertCoordinate := `
		INSERT INTO star_coordinates (star_id, right_ascension, declination, magnitude)
		VALUES ($1, $2, $3, $4)
	`

	c := s.Metadata.Coordinate
	_, err := monitoring.InstrumentExec(ctx, r.querier(), "INSERT", "stars", insertStar,
		s.ID, s.Owner, s.Metadata.Name, s.Metadata.Description, c.RA, c.Dec, c.Mag,
		s.Approved, nullPrice(s.SalePrice), s.MintedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domainErrors.ErrDuplicateID
		}
		return err
	}

	_, err = monitoring.InstrumentExec(ctx, r.querier(), "INSERT", "star_coordinates", insertCoordinate,
		s.ID, c.RA, c.Dec, c.Mag,
	)
	return err
}

// UpdateStar writes the mutable fields. Metadata is never rewritten.
func (r *StarRepository) UpdateStar(ctx context.Context, s *star.Star) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE stars
		SET owner = $2, approved = $3, sale_price = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := monitoring.InstrumentExec(ctx, r.querier(), "UPDATE", "stars", query,
		s.ID, s.Owner, s.Approved, nullPrice(s.SalePrice),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainErrors.ErrStarNotFound
	}

	return nil
}

func (r *StarRepository) CountStarsByOwner(ctx context.Context, owner star.Account) (int, error) {
	query := `SELECT COUNT(*) FROM stars WHERE owner = $1`

	var count int
	row := monitoring.InstrumentQueryRow(ctx, r.querier(), "SELECT", "stars", query, owner)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *StarRepository) CoordinateExists(ctx context.Context, c star.Coordinate) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM star_coordinates
			WHERE right_ascension = $1 AND declination = $2 AND magnitude = $3
		)
	`

	var exists bool
	row := monitoring.InstrumentQueryRow(ctx, r.querier(), "SELECT", "star_coordinates", query, c.RA, c.Dec, c.Mag)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *StarRepository) ListCoordinates(ctx context.Context, limit, offset int) ([]star.Coordinate, error) {
	query := `
		SELECT right_ascension, declination, magnitude
		FROM star_coordinates
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := monitoring.InstrumentQuery(ctx, r.querier(), "SELECT", "star_coordinates", query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coords []star.Coordinate
	for rows.Next() {
		var c star.Coordinate
		if err := rows.Scan(&c.RA, &c.Dec, &c.Mag); err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return coords, nil
}

func (r *StarRepository) SetOperatorApproval(ctx context.Context, approval star.OperatorApproval) error {
	query := `
		INSERT INTO operator_approvals (owner, operator, approved, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner, operator)
		DO UPDATE SET approved = EXCLUDED.approved, updated_at = NOW()
	`

	_, err := monitoring.InstrumentExec(ctx, r.querier(), "UPSERT", "operator_approvals", query,
		approval.Owner, approval.Operator, approval.Approved,
	)
	return err
}

func (r *StarRepository) IsOperator(ctx context.Context, owner, operator star.Account) (bool, error) {
	query := `SELECT approved FROM operator_approvals WHERE owner = $1 AND operator = $2`

	var approved bool
	row := monitoring.InstrumentQueryRow(ctx, r.querier(), "SELECT", "operator_approvals", query, owner, operator)
	if err := row.Scan(&approved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return approved, nil
}

func (r *StarRepository) SaveSale(ctx context.Context, plan *star.SalePlan) error {
	query := `
		INSERT INTO star_sales (star_id, seller, buyer, price, payment, refund, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := monitoring.InstrumentExec(ctx, r.querier(), "INSERT", "star_sales", query,
		plan.StarID, plan.Seller, plan.Buyer, plan.Price, plan.Payment, plan.Refund,
	)
	return err
}

func (r *StarRepository) BeginTx(ctx context.Context) (ports.StarRepository, error) {
	if r.isTx {
		return nil, errors.New("transaction already started")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}

	return &StarRepository{
		db:   r.db,
		tx:   tx,
		isTx: true,
	}, nil
}

func (r *StarRepository) CommitTx(ctx context.Context) error {
	if !r.isTx || r.tx == nil {
		return errors.New("no transaction to commit")
	}

	if err := r.tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return domainErrors.ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *StarRepository) RollbackTx(ctx context.Context) error {
	if !r.isTx || r.tx == nil {
		return errors.New("no transaction to rollback")
	}

	err := r.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func nullPrice(p *star.Amount) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func isUniqueViolation(err error) bool {
	return hasSQLState(err, uniqueViolation)
}

// hasSQLState recognises the error shape of both supported drivers.
func hasSQLState(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}

	return false
}
