package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/pricing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeTwoLines(t *testing.T) {
	items := []pricing.Item{
		{Qty: 2, UnitPrice: dec("100"), TaxPercent: dec("10")},
		{Qty: 1, UnitPrice: dec("50"), TaxPercent: dec("5")},
	}

	s := pricing.Compute(items)

	require.Len(t, s.Lines, 2)
	require.True(t, s.Lines[0].PurchasePrice.Equal(dec("200")), "got %s", s.Lines[0].PurchasePrice)
	require.True(t, s.Lines[0].TaxPayable.Equal(dec("20")))
	require.True(t, s.Lines[0].Total.Equal(dec("220")))
	require.True(t, s.Lines[1].PurchasePrice.Equal(dec("50")))
	require.True(t, s.Lines[1].TaxPayable.Equal(dec("2.5")))

	require.True(t, s.TotalWithoutTax.Equal(dec("250")))
	require.True(t, s.TotalTax.Equal(dec("22.5")))
	require.True(t, s.NetTotal.Equal(dec("272.5")))
	require.True(t, s.RoundedDownNetTotal.Equal(dec("272")))
	require.Equal(t, int64(272), s.RoundedTotalUnits())
}

func TestComputeNetIdentity(t *testing.T) {
	items := []pricing.Item{
		{Qty: 3, UnitPrice: dec("19.99"), TaxPercent: dec("18")},
		{Qty: 7, UnitPrice: dec("0.45"), TaxPercent: dec("12.5")},
		{Qty: 1, UnitPrice: dec("1200.00"), TaxPercent: dec("0")},
	}

	s := pricing.Compute(items)

	require.True(t, s.NetTotal.Equal(s.TotalWithoutTax.Add(s.TotalTax)))
	require.True(t, s.RoundedDownNetTotal.LessThanOrEqual(s.NetTotal))
	require.True(t, s.NetTotal.LessThan(s.RoundedDownNetTotal.Add(decimal.NewFromInt(1))))
}

func TestComputeAvoidsFloatError(t *testing.T) {
	// 0.1 + 0.2 style inputs must stay exact in base 10.
	items := []pricing.Item{
		{Qty: 1, UnitPrice: dec("0.10"), TaxPercent: dec("0")},
		{Qty: 1, UnitPrice: dec("0.20"), TaxPercent: dec("0")},
	}

	s := pricing.Compute(items)
	require.Equal(t, "0.3", s.NetTotal.String())
}

func TestComputeEmpty(t *testing.T) {
	s := pricing.Compute(nil)
	require.Empty(t, s.Lines)
	require.True(t, s.NetTotal.IsZero())
	require.Equal(t, int64(0), s.RoundedTotalUnits())
}
