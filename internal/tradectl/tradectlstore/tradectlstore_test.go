// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradectlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

// newTestStore opens a store on a throwaway file. The :memory: DSN is
// per-connection under database/sql pooling, so a file is the reliable choice.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func testExecution(id string, symbol string, minutes int) tradectldata.Execution {
	return tradectldata.Execution{
		ExecutionID:    id,
		AccountID:      "main",
		Symbol:         symbol,
		Side:           tradectldata.SideBuy,
		Quantity:       decimal.RequireFromString("10"),
		Price:          decimal.RequireFromString("99.95"),
		Commission:     decimal.RequireFromString("1.05"),
		CurrencyCode:   "USD",
		Timestamp:      time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute),
		RealizedPnl:    decimal.Zero,
		NetCash:        decimal.Zero,
		RunningBalance: decimal.RequireFromString("5000"),
		Calibrated:     true,
	}
}

func TestUpsertExecutionsRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	first := testExecution("e1", "AAPL", 0)
	second := testExecution("e2", "AAPL", 5)
	require.NoError(t, store.UpsertExecutions(ctx, []tradectldata.Execution{first, second}))

	listed, err := store.ListExecutions(ctx, "main", "")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	got := listed[0]
	require.Equal(t, "e1", got.ExecutionID)
	require.Equal(t, tradectldata.SideBuy, got.Side)
	require.True(t, got.Quantity.Equal(first.Quantity))
	require.True(t, got.Price.Equal(first.Price))
	require.True(t, got.Commission.Equal(first.Commission))
	require.True(t, got.RunningBalance.Equal(first.RunningBalance))
	require.True(t, got.Timestamp.Equal(first.Timestamp))
	require.True(t, got.Calibrated)
}

func TestUpsertExecutionsIdempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	e := testExecution("e1", "AAPL", 0)
	require.NoError(t, store.UpsertExecutions(ctx, []tradectldata.Execution{e}))
	// Re-ingesting the same execution with updated fields overwrites the row
	// instead of duplicating it.
	e.RealizedPnl = decimal.RequireFromString("-42.5")
	require.NoError(t, store.UpsertExecutions(ctx, []tradectldata.Execution{e}))

	count, err := store.CountExecutions(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	listed, err := store.ListExecutions(ctx, "main", "")
	require.NoError(t, err)
	require.True(t, listed[0].RealizedPnl.Equal(decimal.RequireFromString("-42.5")))
}

func TestListExecutionsCanonicalOrder(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	// Insert out of order, including a same-timestamp pair that must tiebreak
	// on execution id.
	late := testExecution("z-late", "AAPL", 60)
	tieA := testExecution("a-tie", "AAPL", 0)
	tieB := testExecution("b-tie", "AAPL", 0)
	require.NoError(t, store.UpsertExecutions(ctx, []tradectldata.Execution{late, tieB, tieA}))

	listed, err := store.ListExecutions(ctx, "main", "")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	require.Equal(t, "a-tie", listed[0].ExecutionID)
	require.Equal(t, "b-tie", listed[1].ExecutionID)
	require.Equal(t, "z-late", listed[2].ExecutionID)
}

func TestListExecutionsSymbolFilter(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertExecutions(ctx, []tradectldata.Execution{
		testExecution("e1", "AAPL", 0),
		testExecution("e2", "MSFT", 5),
	}))

	listed, err := store.ListExecutions(ctx, "main", "MSFT")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "e2", listed[0].ExecutionID)
}

func TestReplaceOpenPositions(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	initial := []tradectldata.OpenPosition{
		{AccountID: "main", Symbol: "AAPL", Quantity: decimal.RequireFromString("100"), CostBasisPrice: decimal.RequireFromString("140"), MarkPrice: decimal.RequireFromString("150"), PositionValue: decimal.RequireFromString("15000"), UnrealizedPnl: decimal.RequireFromString("1000"), CurrencyCode: "USD"},
		{AccountID: "main", Symbol: "MSFT", Quantity: decimal.RequireFromString("50"), CostBasisPrice: decimal.RequireFromString("300"), MarkPrice: decimal.RequireFromString("310"), PositionValue: decimal.RequireFromString("15500"), UnrealizedPnl: decimal.RequireFromString("500"), CurrencyCode: "USD"},
	}
	require.NoError(t, store.ReplaceOpenPositions(ctx, "main", initial))

	// The feed is a full replacement snapshot: a later snapshot with one
	// position clears the other.
	replacement := []tradectldata.OpenPosition{initial[1]}
	require.NoError(t, store.ReplaceOpenPositions(ctx, "main", replacement))
	listed, err := store.ListOpenPositions(ctx, "main")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "MSFT", listed[0].Symbol)
	require.True(t, listed[0].Quantity.Equal(decimal.RequireFromString("50")))

	// An authoritative empty snapshot clears everything.
	require.NoError(t, store.ReplaceOpenPositions(ctx, "main", nil))
	listed, err = store.ListOpenPositions(ctx, "main")
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestReplaceOpenPositionsScopedToAccount(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceOpenPositions(ctx, "main", []tradectldata.OpenPosition{
		{AccountID: "main", Symbol: "AAPL", Quantity: decimal.RequireFromString("1"), CostBasisPrice: decimal.Zero, MarkPrice: decimal.Zero, PositionValue: decimal.Zero, UnrealizedPnl: decimal.Zero, CurrencyCode: "USD"},
	}))
	require.NoError(t, store.ReplaceOpenPositions(ctx, "other", nil))

	listed, err := store.ListOpenPositions(ctx, "main")
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestAccountSnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	// No snapshot before the first sync.
	snapshot, err := store.GetAccountSnapshot(ctx, "main")
	require.NoError(t, err)
	require.Nil(t, snapshot)

	syncedAt := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertAccountSnapshot(ctx, tradectldata.AccountSnapshot{
		AccountID:    "main",
		StartingCash: decimal.RequireFromString("19000"),
		EndingCash:   decimal.RequireFromString("20000"),
		SyncedAt:     syncedAt,
	}))
	// A later sync overwrites the single row.
	require.NoError(t, store.UpsertAccountSnapshot(ctx, tradectldata.AccountSnapshot{
		AccountID:    "main",
		StartingCash: decimal.RequireFromString("19000"),
		EndingCash:   decimal.RequireFromString("21000"),
		SyncedAt:     syncedAt.Add(24 * time.Hour),
	}))

	snapshot, err = store.GetAccountSnapshot(ctx, "main")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.True(t, snapshot.EndingCash.Equal(decimal.RequireFromString("21000")))
	require.True(t, snapshot.SyncedAt.Equal(syncedAt.Add(24*time.Hour)))
}

func TestEquityPointsUpsert(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertEquityPoints(ctx, []tradectldata.EquityPoint{
		{AccountID: "main", ReportDate: day, TotalEquity: decimal.RequireFromString("100000"), Cash: decimal.RequireFromString("20000"), StockValue: decimal.RequireFromString("80000")},
		{AccountID: "main", ReportDate: day.AddDate(0, 0, 1), TotalEquity: decimal.RequireFromString("101000"), Cash: decimal.RequireFromString("20000"), StockValue: decimal.RequireFromString("81000")},
	}))
	// A corrected restatement for the same day overwrites, not duplicates.
	require.NoError(t, store.UpsertEquityPoints(ctx, []tradectldata.EquityPoint{
		{AccountID: "main", ReportDate: day, TotalEquity: decimal.RequireFromString("99500"), Cash: decimal.RequireFromString("19500"), StockValue: decimal.RequireFromString("80000")},
	}))

	points, err := store.ListEquityPoints(ctx, "main")
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.True(t, points[0].TotalEquity.Equal(decimal.RequireFromString("99500")))
	require.True(t, points[0].ReportDate.Equal(day))
}
