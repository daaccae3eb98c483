// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradectlbalance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

var baseTime = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func execution(id string, side tradectldata.Side, quantity string, price string, commission string, minutes int) tradectldata.Execution {
	return tradectldata.Execution{
		ExecutionID: id,
		AccountID:   "main",
		Symbol:      "AAPL",
		Side:        side,
		Quantity:    decimal.RequireFromString(quantity),
		Price:       decimal.RequireFromString(price),
		Commission:  decimal.RequireFromString(commission),
		Timestamp:   baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestAnnotateForwardFromStatementStartingCash(t *testing.T) {
	t.Parallel()
	executions := []tradectldata.Execution{
		// Buy 10 @ 100, commission 1: cash effect -1001.
		execution("buy", tradectldata.SideBuy, "10", "100", "1", 0),
		// Sell 10 @ 110, commission 1: cash effect +1099.
		execution("sell", tradectldata.SideSell, "10", "110", "1", 60),
	}
	series := Annotate(PolicyForward, executions, Anchors{
		StatementStartingCash:    decimal.RequireFromString("5000"),
		HasStatementStartingCash: true,
	})

	require.True(t, series.Calibrated)
	require.True(t, series.Opening.Equal(decimal.RequireFromString("5000")))
	require.True(t, executions[0].RunningBalance.Equal(decimal.RequireFromString("3999")))
	require.True(t, executions[1].RunningBalance.Equal(decimal.RequireFromString("5098")))
	require.True(t, series.Ending.Equal(decimal.RequireFromString("5098")))
	require.True(t, executions[0].Calibrated)
	require.True(t, executions[1].Calibrated)
}

func TestAnnotateForwardAnchorPrecedence(t *testing.T) {
	t.Parallel()
	executions := []tradectldata.Execution{
		execution("buy", tradectldata.SideBuy, "1", "100", "0", 0),
	}
	// The statement's own cash summary wins over the configured override.
	series := Annotate(PolicyForward, executions, Anchors{
		StatementStartingCash:     decimal.RequireFromString("2000"),
		HasStatementStartingCash:  true,
		ConfiguredStartingCash:    decimal.RequireFromString("9999"),
		HasConfiguredStartingCash: true,
	})
	require.True(t, series.Opening.Equal(decimal.RequireFromString("2000")))
	require.True(t, series.Calibrated)

	// Without a statement value, the configured override anchors the series.
	series = Annotate(PolicyForward, executions, Anchors{
		ConfiguredStartingCash:    decimal.RequireFromString("9999"),
		HasConfiguredStartingCash: true,
	})
	require.True(t, series.Opening.Equal(decimal.RequireFromString("9999")))
	require.True(t, series.Calibrated)
}

func TestAnnotateForwardUncalibrated(t *testing.T) {
	t.Parallel()
	executions := []tradectldata.Execution{
		execution("sell", tradectldata.SideSell, "5", "200", "1", 0),
	}
	// No anchor at all: accumulate from zero and flag every row.
	series := Annotate(PolicyForward, executions, Anchors{})

	require.False(t, series.Calibrated)
	require.True(t, series.Opening.IsZero())
	require.True(t, executions[0].RunningBalance.Equal(decimal.RequireFromString("999")))
	require.False(t, executions[0].Calibrated)
}

func TestAnnotateReconcileImpliedStart(t *testing.T) {
	t.Parallel()
	executions := []tradectldata.Execution{
		// Net cash effects: -1001 then +1099, total +98.
		execution("buy", tradectldata.SideBuy, "10", "100", "1", 0),
		execution("sell", tradectldata.SideSell, "10", "110", "1", 60),
	}
	series := Annotate(PolicyReconcile, executions, Anchors{
		StatementEndingCash:    decimal.RequireFromString("5098"),
		HasStatementEndingCash: true,
	})

	require.True(t, series.Calibrated)
	// Implied start: 5098 - 98 = 5000, and the replay lands exactly on the
	// reported ending cash.
	require.True(t, series.Opening.Equal(decimal.RequireFromString("5000")))
	require.True(t, series.Ending.Equal(decimal.RequireFromString("5098")))
	delta, ok := EndingCashDelta(series, Anchors{
		StatementEndingCash:    decimal.RequireFromString("5098"),
		HasStatementEndingCash: true,
	})
	require.True(t, ok)
	require.True(t, delta.IsZero())
}

func TestAnnotateReconcileFallsBackWithoutEndingCash(t *testing.T) {
	t.Parallel()
	executions := []tradectldata.Execution{
		execution("buy", tradectldata.SideBuy, "1", "50", "0", 0),
	}
	// Reconcile without a reported ending cash degrades to the forward
	// anchor chain.
	series := Annotate(PolicyReconcile, executions, Anchors{
		StatementStartingCash:    decimal.RequireFromString("100"),
		HasStatementStartingCash: true,
	})
	require.True(t, series.Calibrated)
	require.True(t, series.Opening.Equal(decimal.RequireFromString("100")))
	require.True(t, series.Ending.Equal(decimal.RequireFromString("50")))
}

func TestAnnotateNetCashOverridesDerivedEffect(t *testing.T) {
	t.Parallel()
	e := execution("buy", tradectldata.SideBuy, "10", "100", "1", 0)
	// When the feed reports an explicit net cash amount, it wins over the
	// derived proceeds-minus-commission value.
	e.NetCash = decimal.RequireFromString("-1000.50")
	executions := []tradectldata.Execution{e}
	series := Annotate(PolicyForward, executions, Anchors{
		StatementStartingCash:    decimal.RequireFromString("2000"),
		HasStatementStartingCash: true,
	})
	require.True(t, series.Ending.Equal(decimal.RequireFromString("999.50")))
}

func TestEndingCashDelta(t *testing.T) {
	t.Parallel()
	series := Series{Ending: decimal.RequireFromString("1010")}

	delta, ok := EndingCashDelta(series, Anchors{
		StatementEndingCash:    decimal.RequireFromString("1000"),
		HasStatementEndingCash: true,
	})
	require.True(t, ok)
	require.True(t, delta.Equal(decimal.RequireFromString("10")))

	_, ok = EndingCashDelta(series, Anchors{})
	require.False(t, ok)
}

func TestPolicyString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "forward", PolicyForward.String())
	require.Equal(t, "reconcile", PolicyReconcile.String())
}
