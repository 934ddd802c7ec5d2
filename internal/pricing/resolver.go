package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
)

// LineQuote is the money breakdown for a quantity of one product.
type LineQuote struct {
	UnitPriceCents int
	Quantity       int
	SubtotalCents  int
	DiscountCents  int
	FinalCents     int
	Promotion      *models.Promotion
}

// ResolvePromotion picks the single promotion applied to a product at the
// given instant. Sporadic promotions in window beat permanent ones; among
// sporadic candidates the latest start date wins, then the larger discount.
// Among permanent candidates the earliest created wins.
func ResolvePromotion(promos []models.Promotion, unitPriceCents int, now time.Time) *models.Promotion {
	var sporadic []models.Promotion
	var permanent []models.Promotion

	for _, promo := range promos {
		if promo.State != enums.PromotionStateActive {
			continue
		}
		switch {
		case promo.IsSporadic():
			if inWindow(promo, now) {
				sporadic = append(sporadic, promo)
			}
		case promo.IsPermanent():
			permanent = append(permanent, promo)
		}
	}

	if len(sporadic) > 0 {
		best := sporadic[0]
		for _, candidate := range sporadic[1:] {
			if candidate.StartDate.After(*best.StartDate) {
				best = candidate
				continue
			}
			if candidate.StartDate.Equal(*best.StartDate) &&
				DiscountCents(candidate, unitPriceCents) > DiscountCents(best, unitPriceCents) {
				best = candidate
			}
		}
		return &best
	}

	if len(permanent) > 0 {
		best := permanent[0]
		for _, candidate := range permanent[1:] {
			if candidate.CreatedAt.Before(best.CreatedAt) {
				best = candidate
			}
		}
		return &best
	}

	return nil
}

// DiscountCents computes the per-unit discount a promotion grants. Percentage
// values use decimal math and round half up; the discount never exceeds the
// unit price.
func DiscountCents(promo models.Promotion, unitPriceCents int) int {
	var discount int
	switch promo.Type {
	case enums.PromotionTypePercentage:
		pct := decimal.NewFromInt(int64(promo.Value)).Div(decimal.NewFromInt(100))
		discount = int(decimal.NewFromInt(int64(unitPriceCents)).Mul(pct).Round(0).IntPart())
	case enums.PromotionTypeFixed:
		discount = promo.Value
	}
	if discount < 0 {
		discount = 0
	}
	if discount > unitPriceCents {
		discount = unitPriceCents
	}
	return discount
}

// QuoteLine computes the breakdown for quantity units at the given unit price,
// applying the winning promotion if any.
func QuoteLine(promos []models.Promotion, unitPriceCents, quantity int, now time.Time) LineQuote {
	promo := ResolvePromotion(promos, unitPriceCents, now)

	quote := LineQuote{
		UnitPriceCents: unitPriceCents,
		Quantity:       quantity,
		SubtotalCents:  unitPriceCents * quantity,
		Promotion:      promo,
	}
	if promo != nil {
		quote.DiscountCents = DiscountCents(*promo, unitPriceCents) * quantity
	}
	quote.FinalCents = quote.SubtotalCents - quote.DiscountCents
	return quote
}

func inWindow(promo models.Promotion, now time.Time) bool {
	if promo.StartDate == nil || promo.EndDate == nil {
		return false
	}
	return !now.Before(*promo.StartDate) && !now.After(*promo.EndDate)
}
