package checkout

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places money is presented with.
const MoneyPlaces = 2

// Round rounds a monetary amount for presentation.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ComputeTotals derives subtotal, tax and total from the lines.
// A discount larger than the subtotal drives the taxable amount to zero, never below.
// Arithmetic runs at full precision and is rounded once at the end.
func ComputeTotals(lines []Line, discount, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Amount())
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	taxable := decimal.Max(decimal.Zero, subtotal.Sub(discount))
	tax := taxable.Mul(taxRate)
	total := taxable.Add(tax)

	return Totals{
		Subtotal: Round(subtotal),
		Discount: Round(discount),
		Taxable:  Round(taxable),
		Tax:      Round(tax),
		Total:    Round(total),
	}
}

// ComputeChangeDue is tender minus total, floored at zero.
func ComputeChangeDue(cashTendered, total decimal.Decimal) decimal.Decimal {
	return Round(decimal.Max(decimal.Zero, cashTendered.Sub(total)))
}
