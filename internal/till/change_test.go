package till_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/till"
)

func tillFloat() []till.Denomination {
	return []till.Denomination{
		{Value: 500, CountAvailable: 2},
		{Value: 50, CountAvailable: 5},
		{Value: 20, CountAvailable: 5},
		{Value: 10, CountAvailable: 5},
		{Value: 5, CountAvailable: 5},
		{Value: 2, CountAvailable: 5},
		{Value: 1, CountAvailable: 5},
	}
}

func TestResolveChangeGreedy(t *testing.T) {
	due, breakdown, err := till.ResolveChange(272, decimal.NewFromInt(1000), tillFloat())
	require.NoError(t, err)
	require.Equal(t, int64(728), due)
	require.Equal(t, []till.DenomCount{
		{Value: 500, Count: 1},
		{Value: 50, Count: 4},
		{Value: 20, Count: 1},
		{Value: 5, Count: 1},
		{Value: 2, Count: 1},
		{Value: 1, Count: 1},
	}, breakdown)

	var sum int64
	prev := int64(1 << 62)
	for _, dc := range breakdown {
		require.GreaterOrEqual(t, dc.Count, int64(1))
		require.Less(t, dc.Value, prev, "breakdown must be strictly descending")
		prev = dc.Value
		sum += dc.Value * dc.Count
	}
	require.Equal(t, due, sum)
}

func TestResolveChangeDeterministic(t *testing.T) {
	due1, b1, err1 := till.ResolveChange(137, decimal.NewFromInt(500), tillFloat())
	due2, b2, err2 := till.ResolveChange(137, decimal.NewFromInt(500), tillFloat())
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, due1, due2)
	require.Equal(t, b1, b2)
}

func TestResolveChangeUnderpayment(t *testing.T) {
	_, _, err := till.ResolveChange(272, decimal.NewFromInt(200), tillFloat())
	require.ErrorIs(t, err, till.ErrUnderpayment)
}

func TestResolveChangeExactPayment(t *testing.T) {
	due, breakdown, err := till.ResolveChange(272, decimal.NewFromInt(272), tillFloat())
	require.NoError(t, err)
	require.Zero(t, due)
	require.Empty(t, breakdown)
}

func TestResolveChangeInsufficient(t *testing.T) {
	inv := []till.Denomination{
		{Value: 500, CountAvailable: 1},
		{Value: 50, CountAvailable: 0},
	}
	_, _, err := till.ResolveChange(100, decimal.NewFromInt(650), inv)
	require.ErrorIs(t, err, till.ErrInsufficientChange)
}

func TestResolveChangeGreedyDoesNotBacktrack(t *testing.T) {
	// 20x3 would satisfy 60 exactly, but the greedy pass consumes the 50 first
	// and cannot finish with the remaining 10.
	inv := []till.Denomination{
		{Value: 50, CountAvailable: 1},
		{Value: 20, CountAvailable: 3},
	}
	_, _, err := till.ResolveChange(0, decimal.NewFromInt(60), inv)
	require.ErrorIs(t, err, till.ErrInsufficientChange)
}

func TestResolveChangeCapsByAvailability(t *testing.T) {
	inv := []till.Denomination{
		{Value: 100, CountAvailable: 1},
		{Value: 50, CountAvailable: 4},
	}
	due, breakdown, err := till.ResolveChange(0, decimal.NewFromInt(300), inv)
	require.NoError(t, err)
	require.Equal(t, int64(300), due)
	require.Equal(t, []till.DenomCount{{Value: 100, Count: 1}, {Value: 50, Count: 4}}, breakdown)
}

func TestResolveChangeFractionalCash(t *testing.T) {
	due, _, err := till.ResolveChange(272, decimal.RequireFromString("272.75"), tillFloat())
	require.NoError(t, err)
	require.Zero(t, due)
}
