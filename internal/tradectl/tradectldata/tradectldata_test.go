// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradectldata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	t.Parallel()
	require.Equal(t, SideBuy, ParseSide("BUY"))
	require.Equal(t, SideBuy, ParseSide("buy"))
	require.Equal(t, SideSell, ParseSide("SELL"))
	require.Equal(t, SideSell, ParseSide("Sell"))
	require.Equal(t, SideUnspecified, ParseSide(""))
	require.Equal(t, SideUnspecified, ParseSide("SHORT"))
}

func TestSideStringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, side := range []Side{SideBuy, SideSell} {
		require.Equal(t, side, ParseSide(side.String()))
	}
}

func TestSignedQuantity(t *testing.T) {
	t.Parallel()
	buy := Execution{Side: SideBuy, Quantity: decimal.RequireFromString("10")}
	require.True(t, buy.SignedQuantity().Equal(decimal.RequireFromString("10")))
	sell := Execution{Side: SideSell, Quantity: decimal.RequireFromString("10")}
	require.True(t, sell.SignedQuantity().Equal(decimal.RequireFromString("-10")))
}

func TestCashEffect(t *testing.T) {
	t.Parallel()
	buy := Execution{
		Side:       SideBuy,
		Quantity:   decimal.RequireFromString("10"),
		Price:      decimal.RequireFromString("100"),
		Commission: decimal.RequireFromString("1"),
	}
	require.True(t, buy.CashEffect().Equal(decimal.RequireFromString("-1001")))

	sell := buy
	sell.Side = SideSell
	require.True(t, sell.CashEffect().Equal(decimal.RequireFromString("999")))

	// An explicit broker net-cash figure overrides the derived value.
	explicit := buy
	explicit.NetCash = decimal.RequireFromString("-1000.25")
	require.True(t, explicit.CashEffect().Equal(decimal.RequireFromString("-1000.25")))
}

func TestSortExecutions(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	executions := []Execution{
		{ExecutionID: "c", Timestamp: base.Add(time.Hour)},
		{ExecutionID: "b", Timestamp: base},
		{ExecutionID: "a", Timestamp: base},
	}
	SortExecutions(executions)
	// Timestamp first, execution id as the deterministic tiebreak.
	require.Equal(t, "a", executions[0].ExecutionID)
	require.Equal(t, "b", executions[1].ExecutionID)
	require.Equal(t, "c", executions[2].ExecutionID)
}
