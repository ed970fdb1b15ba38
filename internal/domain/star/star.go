package star

import (
	"errors"
	"strconv"
	"time"

	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
)

// Account identifies a holder. The empty account is the null account.
type Account string

func (a Account) IsZero() bool {
	return a == ""
}

// Amount is expressed in the smallest payment unit.
type Amount int64

type Coordinate struct {
	RA  string
	Dec string
	Mag string
}

// Key encodes the raw triple for hashing. Each field is length-prefixed so
// no two distinct triples share a key.
func (c Coordinate) Key() string {
	return strconv.Itoa(len(c.RA)) + ":" + c.RA + "|" +
		strconv.Itoa(len(c.Dec)) + ":" + c.Dec + "|" +
		strconv.Itoa(len(c.Mag)) + ":" + c.Mag
}

type Metadata struct {
	Name        string
	Description string
	Coordinate  Coordinate
}

// Info is the tagged view of a star's metadata returned to callers.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	RA          string `json:"ra"`
	Dec         string `json:"dec"`
	Mag         string `json:"mag"`
}

func (m Metadata) Info() Info {
	return Info{
		Name:        m.Name,
		Description: m.Description,
		RA:          "ra_" + m.Coordinate.RA,
		Dec:         "dec_" + m.Coordinate.Dec,
		Mag:         "mag_" + m.Coordinate.Mag,
	}
}

type Star struct {
	ID        int64
	Owner     Account
	Metadata  Metadata
	Approved  Account
	SalePrice *Amount
	MintedAt  time.Time
}

func NewStar(id int64, owner Account, metadata Metadata, mintedAt time.Time) (*Star, error) {
	if owner.IsZero() {
		return nil, domainErrors.ErrInvalidTarget
	}

	return &Star{
		ID:       id,
		Owner:    owner,
		Metadata: metadata,
		MintedAt: mintedAt,
	}, nil
}

func (s *Star) IsListed() bool {
	return s.SalePrice != nil
}

// TransferTo is the only way ownership changes. It clears the approved
// delegate and any active listing.
func (s *Star) TransferTo(to Account) error {
	if to.IsZero() {
		return domainErrors.ErrInvalidTarget
	}

	s.Owner = to
	s.Approved = ""
	s.SalePrice = nil
	return nil
}

func (s *Star) Approve(delegate Account) error {
	if delegate == s.Owner {
		return domainErrors.ErrInvalidTarget
	}

	s.Approved = delegate
	return nil
}

func (s *Star) ListForSale(price Amount) error {
	if price <= 0 {
		return domainErrors.ErrInvalidPrice
	}

	s.SalePrice = &price
	return nil
}

// Clone returns a deep copy so staged changes never alias stored state.
func (s *Star) Clone() *Star {
	if s == nil {
		return nil
	}

	c := *s
	if s.SalePrice != nil {
		price := *s.SalePrice
		c.SalePrice = &price
	}
	return &c
}

func (s *Star) Validate() error {
	if s == nil {
		return errors.New("star cannot be nil")
	}

	if s.Owner.IsZero() {
		return errors.New("star owner cannot be empty")
	}

	if s.SalePrice != nil && *s.SalePrice <= 0 {
		return errors.New("sale price must be positive when listed")
	}

	return nil
}
