package booking

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend reads and writes every amount as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

// PricingBreakdown is derived from a quote and a coupon discount; it has no
// lifecycle of its own.
type PricingBreakdown struct {
	BasePricePerNight decimal.Decimal `json:"basePricePerNight"`
	Nights            int             `json:"nights"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	CouponDiscount    decimal.Decimal `json:"couponDiscount"`
	Total             decimal.Decimal `json:"total"`
	Currency          string          `json:"currency"`
}

// NewPricingBreakdown floors the total at zero. The discount itself is kept
// as given, so it may exceed the subtotal.
func NewPricingBreakdown(q *Quote, discount decimal.Decimal) PricingBreakdown {
	if q == nil {
		return PricingBreakdown{}
	}

	subtotal := q.Subtotal()

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return PricingBreakdown{
		BasePricePerNight: q.PricePerNight,
		Nights:            q.Nights,
		Subtotal:          subtotal,
		CouponDiscount:    discount,
		Total:             total,
		Currency:          q.Currency,
	}
}

// FormatAmount renders an amount for display, e.g. "USD 7,000.50".
func FormatAmount(amount decimal.Decimal, currency string) string {
	fixed := amount.Abs().StringFixed(2) //nolint:gomnd

	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder

	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}

		b.WriteRune(r)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}

	out := sign + b.String() + "." + frac
	if currency == "" {
		return out
	}

	return currency + " " + out
}
