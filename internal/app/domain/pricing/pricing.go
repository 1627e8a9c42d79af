// Package pricing computes bulk-purchase ticket costs and discounts.
// All arithmetic is arbitrary-precision decimal; monetary values are never
// represented as floating point because results must match on-chain integer
// math exactly.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrZeroDivisor is returned when the round supplies a zero discount
// divisor. Callers must treat this as "pricing unavailable" and render
// zero-valued costs rather than propagate a numeric result.
var ErrZeroDivisor = errors.New("discount divisor is zero")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Quote holds the cost figures for purchasing a number of tickets.
// All amounts are clamped to zero: a degenerate discount curve (n large
// enough to push the raw formula negative) must never surface as a
// negative cost.
type Quote struct {
	Tickets            int             `json:"tickets"`
	CostBeforeDiscount decimal.Decimal `json:"cost_before_discount"`
	CostAfterDiscount  decimal.Decimal `json:"cost_after_discount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountPercent    decimal.Decimal `json:"discount_percent"`
}

// Compute returns the cost figures for buying n tickets at the given
// per-ticket price under the round's discount divisor:
//
//	costBeforeDiscount = price * n
//	costAfterDiscount  = price * n * (divisor + 1 - n) / divisor
//	discountAmount     = costBeforeDiscount - costAfterDiscount
func Compute(price, divisor decimal.Decimal, n int) (Quote, error) {
	if divisor.IsZero() {
		return Quote{}, ErrZeroDivisor
	}

	count := decimal.NewFromInt(int64(n))
	before := clampZero(price.Mul(count))
	after := clampZero(before.Mul(divisor.Add(one).Sub(count)).Div(divisor))
	discount := clampZero(before.Sub(after))

	return Quote{
		Tickets:            n,
		CostBeforeDiscount: before,
		CostAfterDiscount:  after,
		DiscountAmount:     discount,
		DiscountPercent:    discountPercent(discount, before),
	}, nil
}

// Zero returns an all-zero quote for n tickets, used when pricing is
// unavailable (missing round data or a zero divisor).
func Zero(n int) Quote {
	return Quote{
		Tickets:            n,
		CostBeforeDiscount: decimal.Zero,
		CostAfterDiscount:  decimal.Zero,
		DiscountAmount:     decimal.Zero,
		DiscountPercent:    decimal.Zero,
	}
}

// discountPercent is discount/before*100, defined as 0 when the base cost
// is zero and the ratio therefore undefined.
func discountPercent(discount, before decimal.Decimal) decimal.Decimal {
	if before.IsZero() {
		return decimal.Zero
	}
	return discount.Div(before).Mul(hundred)
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
