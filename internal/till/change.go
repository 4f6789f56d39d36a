package till

import (
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Denomination is a currency unit of fixed face value with a tracked count in the till.
type Denomination struct {
	Value          int64 `json:"value"`
	CountAvailable int64 `json:"countAvailable"`
}

// DenomCount pairs a face value with a number of units, used for both tendered
// cash and change breakdowns.
type DenomCount struct {
	Value int64 `json:"value"`
	Count int64 `json:"count"`
}

// ErrUnderpayment indicates the cash tendered does not cover the rounded total.
var ErrUnderpayment = common.NewAppError("UNDERPAYMENT", "cash paid is less than the rounded down net total", http.StatusBadRequest, nil)

// ErrInsufficientChange indicates the till cannot return exact change with the
// greedy strategy.
var ErrInsufficientChange = common.NewAppError("INSUFFICIENT_DENOMINATIONS", "insufficient denominations available to return exact change", http.StatusConflict, nil)

// ResolveChange determines the denominations to return for the difference
// between cash paid and the rounded total. Denominations are consumed greedily
// in descending face value order, each capped by its available count. The pass
// never backtracks into smaller denominations once a larger one is taken, so a
// payout can be rejected even when some other combination would sum exactly;
// that mirrors the shop's till policy.
//
// The returned breakdown is strictly descending by value with every count >= 1,
// and is deterministic for identical inputs.
func ResolveChange(roundedTotal int64, cashPaid decimal.Decimal, inventory []Denomination) (int64, []DenomCount, error) {
	rounded := decimal.NewFromInt(roundedTotal)
	if cashPaid.LessThan(rounded) {
		return 0, nil, ErrUnderpayment
	}
	changeDue := cashPaid.Sub(rounded).Floor().IntPart()

	denoms := make([]Denomination, len(inventory))
	copy(denoms, inventory)
	sort.Slice(denoms, func(i, j int) bool { return denoms[i].Value > denoms[j].Value })

	remaining := changeDue
	breakdown := make([]DenomCount, 0, len(denoms))
	for _, d := range denoms {
		if remaining <= 0 {
			break
		}
		if d.Value <= 0 {
			continue
		}
		use := remaining / d.Value
		if use > d.CountAvailable {
			use = d.CountAvailable
		}
		if use > 0 {
			breakdown = append(breakdown, DenomCount{Value: d.Value, Count: use})
			remaining -= use * d.Value
		}
	}
	if remaining != 0 {
		return 0, nil, ErrInsufficientChange
	}
	return changeDue, breakdown, nil
}
