package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Split is the division of a sale price between the platform and the
// creator. The two parts always sum to the original price: the platform fee
// rounds down and the creator absorbs the remainder.
type Split struct {
	PriceCents           int64
	PlatformFeeCents     int64
	CreatorEarningsCents int64
}

// ComputeSplit divides priceCents by the commission rate. The rate is a
// fraction in [0, 1), e.g. 0.15 for a 15% platform cut.
func ComputeSplit(priceCents int64, rate decimal.Decimal) (Split, error) {
	if priceCents < 0 {
		return Split{}, fmt.Errorf("price cents must not be negative")
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Split{}, fmt.Errorf("commission rate %s outside [0, 1)", rate)
	}

	fee := decimal.NewFromInt(priceCents).Mul(rate).Floor().IntPart()
	return Split{
		PriceCents:           priceCents,
		PlatformFeeCents:     fee,
		CreatorEarningsCents: priceCents - fee,
	}, nil
}
