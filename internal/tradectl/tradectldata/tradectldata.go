// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tradectldata defines the normalized records shared across the
// ingestion pipeline, the position matcher, and the store.
package tradectldata

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an execution.
type Side int

const (
	// SideUnspecified indicates a missing or unrecognized side.
	SideUnspecified Side = iota
	// SideBuy is a buy execution.
	SideBuy
	// SideSell is a sell execution.
	SideSell
)

// String returns the broker-conventional name for the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNSPECIFIED"
	}
}

// ParseSide converts a broker buy/sell string to a Side. Matching is
// case-insensitive since report types vary in casing.
func ParseSide(s string) Side {
	switch strings.ToUpper(s) {
	case "BUY":
		return SideBuy
	case "SELL":
		return SideSell
	default:
		return SideUnspecified
	}
}

// Execution is one normalized broker-reported fill.
//
// ExecutionID is the idempotency key: re-ingesting a statement upserts by
// ExecutionID and never creates a duplicate row.
type Execution struct {
	// ExecutionID is the broker's unique identifier for this fill.
	ExecutionID string `json:"execution_id"`
	// AccountID is the account alias this execution belongs to.
	AccountID string `json:"account_id"`
	// Symbol is the ticker symbol.
	Symbol string `json:"symbol"`
	// Side is the execution direction.
	Side Side `json:"side"`
	// Quantity is the positive magnitude of the fill.
	Quantity decimal.Decimal `json:"quantity"`
	// Price is the per-unit fill price.
	Price decimal.Decimal `json:"price"`
	// Commission is the commission magnitude, always a cost.
	Commission decimal.Decimal `json:"commission"`
	// CurrencyCode is the currency of Price, Commission, and RealizedPnl.
	CurrencyCode string `json:"currency_code"`
	// Timestamp is the execution time in UTC.
	Timestamp time.Time `json:"timestamp"`
	// RealizedPnl is the broker's realized P&L signal. Zero conventionally,
	// but not reliably, marks an opening fill.
	RealizedPnl decimal.Decimal `json:"realized_pnl"`
	// NetCash is the broker's explicit net cash effect for this fill, when
	// reported. Zero means not reported.
	NetCash decimal.Decimal `json:"net_cash"`
	// RunningBalance is the account balance immediately after this execution
	// is applied, in canonical order.
	RunningBalance decimal.Decimal `json:"running_balance"`
	// Calibrated reports whether RunningBalance was accumulated from a known
	// anchor value rather than from zero.
	Calibrated bool `json:"calibrated"`
}

// SignedQuantity returns the quantity signed by side: positive for buys,
// negative for sells.
func (e *Execution) SignedQuantity() decimal.Decimal {
	if e.Side == SideSell {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// CashEffect returns the net cash effect of the execution: the broker's
// explicit net-cash figure when reported, otherwise signed trade proceeds
// net of commission (sells add cash, buys remove it).
func (e *Execution) CashEffect() decimal.Decimal {
	if !e.NetCash.IsZero() {
		return e.NetCash
	}
	proceeds := e.Quantity.Mul(e.Price)
	if e.Side == SideBuy {
		proceeds = proceeds.Neg()
	}
	return proceeds.Sub(e.Commission)
}

// SortExecutions sorts executions into canonical order: (Timestamp,
// ExecutionID) ascending. This ordering is the single source of truth for
// balance replay and position matching, and the ExecutionID tiebreak makes
// it deterministic.
func SortExecutions(executions []Execution) {
	sort.SliceStable(executions, func(i, j int) bool {
		if !executions[i].Timestamp.Equal(executions[j].Timestamp) {
			return executions[i].Timestamp.Before(executions[j].Timestamp)
		}
		return executions[i].ExecutionID < executions[j].ExecutionID
	})
}

// OpenPosition is one row of the broker's point-in-time open-positions
// snapshot. The snapshot is a full replacement feed: ingestion replaces all
// rows for an account atomically, never merges.
type OpenPosition struct {
	// AccountID is the account alias.
	AccountID string `json:"account_id"`
	// Symbol is the ticker symbol.
	Symbol string `json:"symbol"`
	// Quantity is the signed position quantity.
	Quantity decimal.Decimal `json:"quantity"`
	// CostBasisPrice is the per-unit cost basis.
	CostBasisPrice decimal.Decimal `json:"cost_basis_price"`
	// MarkPrice is the broker's mark price.
	MarkPrice decimal.Decimal `json:"mark_price"`
	// PositionValue is the marked position value.
	PositionValue decimal.Decimal `json:"position_value"`
	// UnrealizedPnl is the broker-reported unrealized P&L.
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	// CurrencyCode is the currency of the monetary fields.
	CurrencyCode string `json:"currency_code"`
}

// EquityPoint is one broker-reported daily equity summary, independent of
// the execution log. Used as a ground-truth check against the
// execution-derived running balance.
type EquityPoint struct {
	// AccountID is the account alias.
	AccountID string `json:"account_id"`
	// ReportDate is the summary date (midnight UTC).
	ReportDate time.Time `json:"report_date"`
	// TotalEquity is the broker-reported total account value.
	TotalEquity decimal.Decimal `json:"total_equity"`
	// Cash is the broker-reported cash component.
	Cash decimal.Decimal `json:"cash"`
	// StockValue is the broker-reported securities component.
	StockValue decimal.Decimal `json:"stock_value"`
}

// AccountSnapshot is the single current-state row per account.
type AccountSnapshot struct {
	// AccountID is the account alias.
	AccountID string `json:"account_id"`
	// StartingCash is the statement's starting cash, when reported.
	StartingCash decimal.Decimal `json:"starting_cash"`
	// EndingCash is the statement's authoritative ending cash, when reported.
	EndingCash decimal.Decimal `json:"ending_cash"`
	// SyncedAt is when the last successful ingestion completed.
	SyncedAt time.Time `json:"synced_at"`
}
