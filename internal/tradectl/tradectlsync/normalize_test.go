// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradectlsync

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tradectl/tradectl/internal/pkg/activitycsv"
	"github.com/tradectl/tradectl/internal/pkg/flexquery"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

func fixedNow() time.Time {
	return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
}

func TestNormalizeTrades(t *testing.T) {
	t.Parallel()
	executions, warnings := normalizeTrades("main", []flexquery.RawTrade{
		{
			ExecutionID: "t1",
			Symbol:      "AAPL",
			Side:        "BUY",
			Quantity:    "100",
			Price:       "150.25",
			Commission:  "-1.05",
			Currency:    "USD",
			DateTime:    "20250115;093005",
			RealizedPnl: "0",
		},
	}, fixedNow)

	require.Empty(t, warnings)
	require.Len(t, executions, 1)
	e := executions[0]
	require.Equal(t, "t1", e.ExecutionID)
	require.Equal(t, "main", e.AccountID)
	require.Equal(t, tradectldata.SideBuy, e.Side)
	require.True(t, e.Quantity.Equal(decimal.RequireFromString("100")))
	// Commission arrives as a negative cash amount and is normalized to a
	// cost magnitude.
	require.True(t, e.Commission.Equal(decimal.RequireFromString("1.05")))
	require.Equal(t, time.Date(2025, 1, 15, 9, 30, 5, 0, time.UTC), e.Timestamp)
}

func TestNormalizeTradesSideFromSignedQuantity(t *testing.T) {
	t.Parallel()
	// Some report types omit buySell and sign the quantity instead.
	executions, warnings := normalizeTrades("main", []flexquery.RawTrade{
		{ExecutionID: "t1", Symbol: "MSFT", Quantity: "-25", Price: "300", DateTime: "20250110;100000"},
		{ExecutionID: "t2", Symbol: "MSFT", Quantity: "25", Price: "300", DateTime: "20250110;110000"},
	}, fixedNow)

	require.Empty(t, warnings)
	require.Equal(t, tradectldata.SideSell, executions[0].Side)
	require.True(t, executions[0].Quantity.Equal(decimal.RequireFromString("25")), "quantity must be stored unsigned")
	require.Equal(t, tradectldata.SideBuy, executions[1].Side)
}

func TestNormalizeTradesDegradedRows(t *testing.T) {
	t.Parallel()
	executions, warnings := normalizeTrades("main", []flexquery.RawTrade{
		// No execution id: skipped entirely.
		{Symbol: "GOOG", Quantity: "10", DateTime: "20250110;100000"},
		// Unparseable quantity: skipped entirely.
		{ExecutionID: "bad-qty", Symbol: "GOOG", Quantity: "ten", DateTime: "20250110;100000"},
		// Unparseable timestamp: kept with the current time substituted.
		{ExecutionID: "bad-ts", Symbol: "GOOG", Side: "BUY", Quantity: "10", Price: "100", DateTime: "not-a-time"},
	}, fixedNow)

	require.Len(t, executions, 1)
	require.Equal(t, "bad-ts", executions[0].ExecutionID)
	require.Equal(t, fixedNow().UTC(), executions[0].Timestamp)
	require.Len(t, warnings, 3)
}

func TestDedupeExecutionsRealizedPnlWins(t *testing.T) {
	t.Parallel()
	// The same execution appears in both the historical and today reports.
	// Whichever copy carries the non-zero realized P&L is the more complete
	// record and must win regardless of arrival order.
	withPnl := tradectldata.Execution{
		ExecutionID: "dup",
		RealizedPnl: decimal.RequireFromString("-42.5"),
	}
	withoutPnl := tradectldata.Execution{
		ExecutionID: "dup",
	}

	deduped := dedupeExecutions([]tradectldata.Execution{withoutPnl, withPnl})
	require.Len(t, deduped, 1)
	require.True(t, deduped[0].RealizedPnl.Equal(decimal.RequireFromString("-42.5")))

	deduped = dedupeExecutions([]tradectldata.Execution{withPnl, withoutPnl})
	require.Len(t, deduped, 1)
	require.True(t, deduped[0].RealizedPnl.Equal(decimal.RequireFromString("-42.5")))
}

func TestDedupeExecutionsPreservesOrder(t *testing.T) {
	t.Parallel()
	deduped := dedupeExecutions([]tradectldata.Execution{
		{ExecutionID: "a"},
		{ExecutionID: "b"},
		{ExecutionID: "a"},
		{ExecutionID: "c"},
	})
	require.Len(t, deduped, 3)
	require.Equal(t, "a", deduped[0].ExecutionID)
	require.Equal(t, "b", deduped[1].ExecutionID)
	require.Equal(t, "c", deduped[2].ExecutionID)
}

func TestApplyCutoff(t *testing.T) {
	t.Parallel()
	cutoff := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	executions := []tradectldata.Execution{
		{ExecutionID: "before", Timestamp: time.Date(2025, 1, 14, 23, 59, 59, 0, time.UTC)},
		{ExecutionID: "exact", Timestamp: cutoff},
		{ExecutionID: "after", Timestamp: time.Date(2025, 1, 15, 0, 0, 1, 0, time.UTC)},
	}

	kept := applyCutoff(executions, cutoff)
	require.Len(t, kept, 2)
	// Strictly-before is dropped, the exact boundary is kept.
	require.Equal(t, "exact", kept[0].ExecutionID)
	require.Equal(t, "after", kept[1].ExecutionID)
}

func TestApplyCutoffZeroKeepsEverything(t *testing.T) {
	t.Parallel()
	executions := []tradectldata.Execution{
		{ExecutionID: "a", Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.Len(t, applyCutoff(executions, time.Time{}), 1)
}

func TestNormalizeCSVTradesSyntheticIDs(t *testing.T) {
	t.Parallel()
	trades := []activitycsv.Trade{
		{
			Symbol:       "AAPL",
			DateTime:     time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC),
			CurrencyCode: "USD",
			Quantity:     "100",
			TradePrice:   "150.50",
			Commission:   "-1",
			RealizedPnl:  "0",
		},
	}
	first, warnings := normalizeCSVTrades("main", trades)
	require.Empty(t, warnings)
	require.Len(t, first, 1)
	require.Equal(t, "csv-main-AAPL-20240305T101500-100-150.50", first[0].ExecutionID)
	// Re-importing the same file derives the same ids, so the upsert is
	// idempotent.
	second, _ := normalizeCSVTrades("main", trades)
	require.Equal(t, first[0].ExecutionID, second[0].ExecutionID)
}

func TestConvertPositions(t *testing.T) {
	t.Parallel()
	positions, warnings := convertPositions("main", []flexquery.RawPosition{
		{Symbol: "AAPL", Quantity: "100", CostBasisPrice: "140", MarkPrice: "150", PositionValue: "15000", UnrealizedPnl: "1000", Currency: "USD"},
		{Symbol: "BAD", Quantity: "many"},
	})
	require.Len(t, positions, 1)
	require.Len(t, warnings, 1)
	require.Equal(t, "AAPL", positions[0].Symbol)
	require.True(t, positions[0].UnrealizedPnl.Equal(decimal.RequireFromString("1000")))
}

func TestConvertEquityPoints(t *testing.T) {
	t.Parallel()
	points, warnings := convertEquityPoints("main", []flexquery.RawEquitySummary{
		{ReportDate: "20250110", Total: "100000", Cash: "20000", Stock: "80000"},
		{ReportDate: "nope", Total: "1"},
	})
	require.Len(t, points, 1)
	require.Len(t, warnings, 1)
	require.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), points[0].ReportDate)
	require.True(t, points[0].TotalEquity.Equal(decimal.RequireFromString("100000")))
}
