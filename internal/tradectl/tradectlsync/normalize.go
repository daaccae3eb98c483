// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradectlsync

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradectl/tradectl/internal/pkg/activitycsv"
	"github.com/tradectl/tradectl/internal/pkg/flexquery"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

// flexTimestampLayouts are the timestamp formats seen across report types,
// tried in order.
var flexTimestampLayouts = []string{
	"20060102;150405",
	"2006-01-02;15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"20060102",
	"2006-01-02",
}

// normalizeTrades converts raw statement trades into normalized executions.
//
// Degraded rows are kept, not dropped: an unparseable timestamp falls back
// to now and is reported as a warning. Rows without an execution id or a
// parseable quantity cannot participate in dedupe or matching and are
// skipped with a warning.
func normalizeTrades(accountID string, raws []flexquery.RawTrade, now func() time.Time) ([]tradectldata.Execution, []string) {
	executions := make([]tradectldata.Execution, 0, len(raws))
	var warnings []string
	for i := range raws {
		raw := &raws[i]
		if raw.ExecutionID == "" {
			warnings = append(warnings, fmt.Sprintf("skipping trade %s without an execution id", raw.Symbol))
			continue
		}
		quantity, err := parseDecimal(raw.Quantity)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping execution %s: unparseable quantity %q", raw.ExecutionID, raw.Quantity))
			continue
		}
		side := tradectldata.ParseSide(raw.Side)
		if side == tradectldata.SideUnspecified {
			// Some report types omit buySell and sign the quantity instead.
			if quantity.Sign() < 0 {
				side = tradectldata.SideSell
			} else {
				side = tradectldata.SideBuy
			}
		}
		timestamp, err := parseFlexTimestamp(raw.DateTime)
		if err != nil {
			// Best-effort fallback: keep the row, mark it degraded.
			timestamp = now().UTC()
			warnings = append(warnings, fmt.Sprintf("execution %s: unparseable timestamp %q, substituting current time", raw.ExecutionID, raw.DateTime))
		}
		price, err := parseDecimal(raw.Price)
		if err != nil {
			price = decimal.Zero
			warnings = append(warnings, fmt.Sprintf("execution %s: unparseable price %q, substituting zero", raw.ExecutionID, raw.Price))
		}
		commission, err := parseDecimal(raw.Commission)
		if err != nil {
			commission = decimal.Zero
			warnings = append(warnings, fmt.Sprintf("execution %s: unparseable commission %q, substituting zero", raw.ExecutionID, raw.Commission))
		}
		realizedPnl, err := parseDecimal(raw.RealizedPnl)
		if err != nil {
			realizedPnl = decimal.Zero
			warnings = append(warnings, fmt.Sprintf("execution %s: unparseable realized pnl %q, substituting zero", raw.ExecutionID, raw.RealizedPnl))
		}
		netCash, err := parseDecimal(raw.NetCash)
		if err != nil {
			netCash = decimal.Zero
		}
		executions = append(executions, tradectldata.Execution{
			ExecutionID: raw.ExecutionID,
			AccountID:   accountID,
			Symbol:      raw.Symbol,
			Side:        side,
			Quantity:    quantity.Abs(),
			Price:       price,
			// IBKR reports commission as a negative cash amount; the
			// normalized record carries the cost magnitude.
			Commission:   commission.Abs(),
			CurrencyCode: raw.Currency,
			Timestamp:    timestamp,
			RealizedPnl:  realizedPnl,
			NetCash:      netCash,
		})
	}
	return executions, warnings
}

// normalizeCSVTrades converts Activity Statement CSV trades into normalized
// executions. The CSV format has no execution ids, so a deterministic
// synthetic id is derived from the row's identifying fields: re-importing
// the same file upserts the same rows.
func normalizeCSVTrades(accountID string, trades []activitycsv.Trade) ([]tradectldata.Execution, []string) {
	raws := make([]flexquery.RawTrade, 0, len(trades))
	for i := range trades {
		trade := &trades[i]
		raws = append(raws, flexquery.RawTrade{
			ExecutionID: fmt.Sprintf("csv-%s-%s-%s-%s-%s",
				accountID,
				trade.Symbol,
				trade.DateTime.UTC().Format("20060102T150405"),
				trade.Quantity,
				trade.TradePrice,
			),
			Symbol:      trade.Symbol,
			Quantity:    trade.Quantity,
			Price:       trade.TradePrice,
			Commission:  trade.Commission,
			Currency:    trade.CurrencyCode,
			RealizedPnl: trade.RealizedPnl,
			DateTime:    trade.DateTime.UTC().Format(time.RFC3339),
		})
	}
	return normalizeTrades(accountID, raws, time.Now)
}

// dedupeExecutions removes duplicate execution ids, keeping at most one row
// per id. When the same id appears with and without a realized P&L signal
// (e.g., present in both the historical and today reports), the record
// carrying non-zero realized P&L wins: it is the more complete one.
// Otherwise the later occurrence wins. Input order is otherwise preserved.
func dedupeExecutions(executions []tradectldata.Execution) []tradectldata.Execution {
	indexByID := make(map[string]int, len(executions))
	deduped := make([]tradectldata.Execution, 0, len(executions))
	for i := range executions {
		execution := executions[i]
		existing, ok := indexByID[execution.ExecutionID]
		if !ok {
			indexByID[execution.ExecutionID] = len(deduped)
			deduped = append(deduped, execution)
			continue
		}
		// Keep the record with the non-zero realized P&L signal.
		if execution.RealizedPnl.IsZero() && !deduped[existing].RealizedPnl.IsZero() {
			continue
		}
		deduped[existing] = execution
	}
	return deduped
}

// applyCutoff drops executions strictly before the cutoff. A zero cutoff
// keeps everything. Dropped executions are excluded from all downstream
// processing, not merely hidden.
func applyCutoff(executions []tradectldata.Execution, cutoff time.Time) []tradectldata.Execution {
	if cutoff.IsZero() {
		return executions
	}
	kept := executions[:0]
	for i := range executions {
		if executions[i].Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, executions[i])
	}
	return kept
}

// convertPositions converts raw open positions into normalized records.
func convertPositions(accountID string, raws []flexquery.RawPosition) ([]tradectldata.OpenPosition, []string) {
	positions := make([]tradectldata.OpenPosition, 0, len(raws))
	var warnings []string
	for i := range raws {
		raw := &raws[i]
		position := tradectldata.OpenPosition{
			AccountID:    accountID,
			Symbol:       raw.Symbol,
			CurrencyCode: raw.Currency,
		}
		var err error
		if position.Quantity, err = parseDecimal(raw.Quantity); err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping position %s: unparseable quantity %q", raw.Symbol, raw.Quantity))
			continue
		}
		if position.CostBasisPrice, err = parseDecimal(raw.CostBasisPrice); err != nil {
			warnings = append(warnings, fmt.Sprintf("position %s: unparseable cost basis price %q, substituting zero", raw.Symbol, raw.CostBasisPrice))
		}
		if position.MarkPrice, err = parseDecimal(raw.MarkPrice); err != nil {
			warnings = append(warnings, fmt.Sprintf("position %s: unparseable mark price %q, substituting zero", raw.Symbol, raw.MarkPrice))
		}
		if position.PositionValue, err = parseDecimal(raw.PositionValue); err != nil {
			warnings = append(warnings, fmt.Sprintf("position %s: unparseable position value %q, substituting zero", raw.Symbol, raw.PositionValue))
		}
		if position.UnrealizedPnl, err = parseDecimal(raw.UnrealizedPnl); err != nil {
			warnings = append(warnings, fmt.Sprintf("position %s: unparseable unrealized pnl %q, substituting zero", raw.Symbol, raw.UnrealizedPnl))
		}
		positions = append(positions, position)
	}
	return positions, warnings
}

// convertEquityPoints converts raw equity summaries into normalized records.
func convertEquityPoints(accountID string, raws []flexquery.RawEquitySummary) ([]tradectldata.EquityPoint, []string) {
	points := make([]tradectldata.EquityPoint, 0, len(raws))
	var warnings []string
	for i := range raws {
		raw := &raws[i]
		reportDate, err := parseFlexTimestamp(raw.ReportDate)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping equity summary with unparseable report date %q", raw.ReportDate))
			continue
		}
		point := tradectldata.EquityPoint{
			AccountID:  accountID,
			ReportDate: reportDate,
		}
		if point.TotalEquity, err = parseDecimal(raw.Total); err != nil {
			warnings = append(warnings, fmt.Sprintf("equity summary %s: unparseable total %q, substituting zero", raw.ReportDate, raw.Total))
		}
		if point.Cash, err = parseDecimal(raw.Cash); err != nil {
			warnings = append(warnings, fmt.Sprintf("equity summary %s: unparseable cash %q, substituting zero", raw.ReportDate, raw.Cash))
		}
		if point.StockValue, err = parseDecimal(raw.Stock); err != nil {
			warnings = append(warnings, fmt.Sprintf("equity summary %s: unparseable stock value %q, substituting zero", raw.ReportDate, raw.Stock))
		}
		points = append(points, point)
	}
	return points, warnings
}

// parseFlexTimestamp parses the feed's timestamp variants in preference order.
func parseFlexTimestamp(s string) (time.Time, error) {
	for _, layout := range flexTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// parseDecimal parses a decimal string, treating empty as zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
