// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tradectlbalance reconstructs the running account balance series
// from a canonically ordered execution log.
//
// Two policies exist because the broker feed does not always report the same
// anchors: forward accumulation starts from a known starting-cash value,
// while reconciliation derives the implied starting balance from a known
// ending balance and replays forward identically. Both tolerate partial
// data: with no anchor at all, the series accumulates from zero and is
// flagged uncalibrated rather than guessed.
package tradectlbalance

import (
	"github.com/shopspring/decimal"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

// Policy selects how the running balance series is anchored.
type Policy int

const (
	// PolicyForward accumulates forward from a starting-cash anchor: the
	// statement's own cash summary when present, else the configured
	// starting cash, else zero (uncalibrated).
	PolicyForward Policy = iota
	// PolicyReconcile derives the implied starting balance by subtracting
	// the batch's total net cash effect from the statement's ending cash,
	// then replays forward identically to PolicyForward.
	PolicyReconcile
)

// String returns the config-file name for the policy.
func (p Policy) String() string {
	switch p {
	case PolicyReconcile:
		return "reconcile"
	default:
		return "forward"
	}
}

// Anchors describes the anchor values available for one replay. Has flags
// distinguish a reported zero from an absent value.
type Anchors struct {
	// StatementStartingCash is the statement's reported starting cash.
	StatementStartingCash decimal.Decimal
	// HasStatementStartingCash reports whether the statement reported starting cash.
	HasStatementStartingCash bool
	// StatementEndingCash is the statement's authoritative ending cash.
	StatementEndingCash decimal.Decimal
	// HasStatementEndingCash reports whether the statement reported ending cash.
	HasStatementEndingCash bool
	// ConfiguredStartingCash is the per-account configured anchor override.
	ConfiguredStartingCash decimal.Decimal
	// HasConfiguredStartingCash reports whether the override was configured.
	HasConfiguredStartingCash bool
}

// Series summarizes one annotated balance series.
type Series struct {
	// Opening is the anchor the replay started from.
	Opening decimal.Decimal
	// Ending is the final running balance after all executions.
	Ending decimal.Decimal
	// Calibrated reports whether Opening came from a known anchor. An
	// uncalibrated series is still stored, but its absolute values are only
	// meaningful as deltas.
	Calibrated bool
}

// Annotate computes the running balance for each execution in place and
// returns the series summary.
//
// The executions must already be in canonical (timestamp, execution id)
// order: replay order is the single source of truth for the series, and
// re-running on unchanged input reproduces identical balances.
func Annotate(policy Policy, executions []tradectldata.Execution, anchors Anchors) Series {
	opening, calibrated := resolveOpening(policy, executions, anchors)
	balance := opening
	for i := range executions {
		balance = balance.Add(executions[i].CashEffect())
		executions[i].RunningBalance = balance
		executions[i].Calibrated = calibrated
	}
	return Series{
		Opening:    opening,
		Ending:     balance,
		Calibrated: calibrated,
	}
}

// EndingCashDelta returns the signed difference between the computed ending
// balance and the broker-reported ending cash. A nonzero delta is a
// data-quality warning for the caller to surface; the stored series is never
// silently corrected to match.
func EndingCashDelta(series Series, anchors Anchors) (decimal.Decimal, bool) {
	if !anchors.HasStatementEndingCash {
		return decimal.Zero, false
	}
	return series.Ending.Sub(anchors.StatementEndingCash), true
}

// resolveOpening picks the opening balance for the replay per the policy.
func resolveOpening(policy Policy, executions []tradectldata.Execution, anchors Anchors) (decimal.Decimal, bool) {
	if policy == PolicyReconcile && anchors.HasStatementEndingCash {
		// Implied start: known final balance minus the batch's total net
		// cash effect, so the forward replay lands exactly on the final.
		total := decimal.Zero
		for i := range executions {
			total = total.Add(executions[i].CashEffect())
		}
		return anchors.StatementEndingCash.Sub(total), true
	}
	if anchors.HasStatementStartingCash {
		return anchors.StatementStartingCash, true
	}
	if anchors.HasConfiguredStartingCash {
		return anchors.ConfiguredStartingCash, true
	}
	return decimal.Zero, false
}
