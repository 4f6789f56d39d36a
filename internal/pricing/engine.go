package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Item describes a resolved line used for bill calculation. Prices are exact
// decimals; binary floats never carry monetary values.
type Item struct {
	Qty        int64
	UnitPrice  decimal.Decimal
	TaxPercent decimal.Decimal
}

// LineTotals holds the derived amounts for a single line.
type LineTotals struct {
	PurchasePrice decimal.Decimal
	TaxPayable    decimal.Decimal
	Total         decimal.Decimal
}

// Summary aggregates computed bill components.
type Summary struct {
	Lines               []LineTotals
	TotalWithoutTax     decimal.Decimal
	TotalTax            decimal.Decimal
	NetTotal            decimal.Decimal
	RoundedDownNetTotal decimal.Decimal
}

// Compute calculates per-line and aggregate totals for the provided items.
// The rounded total truncates the taxed sum to whole currency units.
func Compute(items []Item) Summary {
	s := Summary{
		Lines:           make([]LineTotals, 0, len(items)),
		TotalWithoutTax: decimal.Zero,
		TotalTax:        decimal.Zero,
	}
	for _, it := range items {
		qty := decimal.NewFromInt(it.Qty)
		purchasePrice := it.UnitPrice.Mul(qty)
		taxPayable := purchasePrice.Mul(it.TaxPercent).Div(hundred)
		s.Lines = append(s.Lines, LineTotals{
			PurchasePrice: purchasePrice,
			TaxPayable:    taxPayable,
			Total:         purchasePrice.Add(taxPayable),
		})
		s.TotalWithoutTax = s.TotalWithoutTax.Add(purchasePrice)
		s.TotalTax = s.TotalTax.Add(taxPayable)
	}
	s.NetTotal = s.TotalWithoutTax.Add(s.TotalTax)
	s.RoundedDownNetTotal = s.NetTotal.Floor()
	return s
}

// RoundedTotalUnits returns the payable amount in whole currency units.
func (s Summary) RoundedTotalUnits() int64 {
	return s.RoundedDownNetTotal.IntPart()
}
