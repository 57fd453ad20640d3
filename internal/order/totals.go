package order

import "github.com/shopspring/decimal"

// Tax is a flat 18% of the goods subtotal; shipping is a flat fee waived
// above the free-shipping threshold. Rate math runs on decimals so
// percentages of odd subtotals round once, at the end, instead of
// accumulating integer truncation per line.
const (
	taxRatePercent             = 18
	shippingFlatCents          = 2500
	freeShippingThresholdCents = 100_000
)

var taxRate = decimal.NewFromInt(taxRatePercent).Div(decimal.NewFromInt(100))

type totals struct {
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	TotalCents    int64
}

func computeTotals(subtotalCents int64) totals {
	tax := decimal.NewFromInt(subtotalCents).Mul(taxRate).Round(0).IntPart()

	var shipping int64
	if subtotalCents > 0 && subtotalCents < freeShippingThresholdCents {
		shipping = shippingFlatCents
	}

	return totals{
		SubtotalCents: subtotalCents,
		TaxCents:      tax,
		ShippingCents: shipping,
		TotalCents:    subtotalCents + tax + shipping,
	}
}
