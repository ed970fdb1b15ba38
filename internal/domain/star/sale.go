package star

import (
	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
)

// SalePlan holds every effect of a purchase, computed before anything is applied.
type SalePlan struct {
	StarID  int64   `json:"star_id"`
	Seller  Account `json:"seller"`
	Buyer   Account `json:"buyer"`
	Price   Amount  `json:"price"`
	Payment Amount  `json:"payment"`
	Refund  Amount  `json:"refund"`
}

// PlanSale validates a purchase of s by buyer and computes the settlement.
// A nil star is reported as not listed.
func PlanSale(s *Star, buyer Account, payment Amount) (*SalePlan, error) {
	if s == nil || !s.IsListed() {
		return nil, domainErrors.ErrNotListed
	}

	price := *s.SalePrice
	if payment < price {
		return nil, domainErrors.ErrInsufficientPayment
	}

	if buyer.IsZero() {
		return nil, domainErrors.ErrInvalidTarget
	}

	return &SalePlan{
		StarID:  s.ID,
		Seller:  s.Owner,
		Buyer:   buyer,
		Price:   price,
		Payment: payment,
		Refund:  payment - price,
	}, nil
}

// Apply moves ownership according to the plan.
func (p *SalePlan) Apply(s *Star) error {
	return s.TransferTo(p.Buyer)
}

// Receipt identifies a settled payment so it can be reversed.
type Receipt struct {
	ID   string
	Plan SalePlan
}
