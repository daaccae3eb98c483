// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tradectlmatch reconstructs the open/close lineage of an execution
// log using FIFO lot matching.
//
// Matching is a pure function over the execution log: no I/O, no side
// effects, recomputed on every read. Each (account, symbol) partition is
// processed independently with its own lot queue, so results for one
// partition never depend on another.
package tradectlmatch

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

// Direction labels which side of a position a closing execution closed.
type Direction string

const (
	// DirectionNone marks executions that closed nothing.
	DirectionNone Direction = ""
	// DirectionLong marks a close of a long position (closing side was SELL).
	DirectionLong Direction = "L"
	// DirectionShort marks a close of a short position (closing side was BUY).
	DirectionShort Direction = "S"
)

// ProcessedExecution is an execution annotated with its close lineage.
// Only closing executions carry a non-zero duration and direction.
type ProcessedExecution struct {
	tradectldata.Execution
	// ClosedQuantity is the magnitude this execution closed, zero for pure openers.
	ClosedQuantity decimal.Decimal `json:"closed_quantity"`
	// HoldingDuration is the elapsed time from the earliest matched opening
	// execution to this close. Valid only when Direction is set.
	HoldingDuration time.Duration `json:"holding_duration"`
	// Direction is the direction of the position being closed.
	Direction Direction `json:"direction"`
}

// OpenLot is a not-yet-fully-closed opening execution remaining after the
// full log has been processed. Lots are recomputed from the execution log on
// every run and never persisted.
type OpenLot struct {
	// AccountID is the account alias.
	AccountID string `json:"account_id"`
	// Symbol is the ticker symbol.
	Symbol string `json:"symbol"`
	// OpeningExecutionID is the execution that opened the lot.
	OpeningExecutionID string `json:"opening_execution_id"`
	// OpenedAt is the opening execution's timestamp.
	OpenedAt time.Time `json:"opened_at"`
	// RemainingQuantity is the unclosed magnitude.
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	// Direction is the lot direction: long or short.
	Direction Direction `json:"direction"`
}

// Anomaly records an execution the matcher could not fully reconcile, such
// as a close with no matching open. Anomalies are surfaced to the caller
// rather than aborting the computation.
type Anomaly struct {
	// AccountID is the account alias.
	AccountID string `json:"account_id"`
	// Symbol is the ticker symbol.
	Symbol string `json:"symbol"`
	// ExecutionID is the affected execution.
	ExecutionID string `json:"execution_id"`
	// UnmatchedQuantity is the closing quantity no open lot could absorb.
	UnmatchedQuantity decimal.Decimal `json:"unmatched_quantity"`
	// Reason describes the anomaly.
	Reason string `json:"reason"`
}

// Result is the matcher output for one invocation.
type Result struct {
	// Processed is the annotated execution list in canonical order.
	Processed []ProcessedExecution
	// OpenLots is the set of lots still open after the full log, sorted by
	// account, symbol, open time, execution id.
	OpenLots []OpenLot
	// Anomalies lists executions that could not be fully matched.
	Anomalies []Anomaly
}

// partitionKey identifies one independent FIFO partition.
type partitionKey struct {
	accountID string
	symbol    string
}

// queueLot is a matcher-internal FIFO queue entry.
type queueLot struct {
	openingExecutionID string
	openedAt           time.Time
	remaining          decimal.Decimal
	direction          Direction
}

// Match reconstructs the open/close lineage of the given executions.
//
// The input is re-sorted into canonical (timestamp, execution id) order, so
// callers may pass executions in any order. Matching is deterministic: the
// same input always produces identical output.
func Match(executions []tradectldata.Execution, classifier Classifier) *Result {
	ordered := make([]tradectldata.Execution, len(executions))
	copy(ordered, executions)
	tradectldata.SortExecutions(ordered)
	// Group execution indexes by partition, preserving canonical order.
	partitionIndexes := make(map[partitionKey][]int)
	var partitionOrder []partitionKey
	for i := range ordered {
		key := partitionKey{accountID: ordered[i].AccountID, symbol: ordered[i].Symbol}
		if _, ok := partitionIndexes[key]; !ok {
			partitionOrder = append(partitionOrder, key)
		}
		partitionIndexes[key] = append(partitionIndexes[key], i)
	}
	result := &Result{
		Processed: make([]ProcessedExecution, len(ordered)),
	}
	for i := range ordered {
		result.Processed[i] = ProcessedExecution{Execution: ordered[i]}
	}
	for _, key := range partitionOrder {
		matchPartition(result, ordered, partitionIndexes[key], classifier)
	}
	sort.Slice(result.OpenLots, func(i, j int) bool {
		a, b := result.OpenLots[i], result.OpenLots[j]
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if !a.OpenedAt.Equal(b.OpenedAt) {
			return a.OpenedAt.Before(b.OpenedAt)
		}
		return a.OpeningExecutionID < b.OpeningExecutionID
	})
	return result
}

// matchPartition runs the FIFO algorithm over one (account, symbol) partition.
// Each unit of quantity is matched exactly once and the queue is drained
// strictly oldest-first, so the partition cost is linear in its executions.
func matchPartition(result *Result, ordered []tradectldata.Execution, indexes []int, classifier Classifier) {
	var (
		position decimal.Decimal
		queue    []queueLot
	)
	for _, i := range indexes {
		execution := &ordered[i]
		classification := classifier.Classify(position, execution)
		if classification.CloseQuantity.Sign() > 0 {
			closePartitionLots(result, i, execution, classification.CloseQuantity, &queue)
		}
		if classification.OpenQuantity.Sign() > 0 {
			queue = append(queue, queueLot{
				openingExecutionID: execution.ExecutionID,
				openedAt:           execution.Timestamp,
				remaining:          classification.OpenQuantity,
				direction:          lotDirection(execution),
			})
		}
		position = position.Add(execution.SignedQuantity())
	}
	for _, lot := range queue {
		result.OpenLots = append(result.OpenLots, OpenLot{
			AccountID:          ordered[indexes[0]].AccountID,
			Symbol:             ordered[indexes[0]].Symbol,
			OpeningExecutionID: lot.openingExecutionID,
			OpenedAt:           lot.openedAt,
			RemainingQuantity:  lot.remaining,
			Direction:          lot.direction,
		})
	}
}

// closePartitionLots drains the FIFO queue from the front for a closing
// execution, annotating the processed row with the duration from the
// earliest matched opening and the direction label.
func closePartitionLots(
	result *Result,
	index int,
	execution *tradectldata.Execution,
	closeQuantity decimal.Decimal,
	queue *[]queueLot,
) {
	remaining := closeQuantity
	var (
		matched        decimal.Decimal
		earliestOpenAt time.Time
	)
	for len(*queue) > 0 && remaining.Sign() > 0 {
		lot := &(*queue)[0]
		if earliestOpenAt.IsZero() || lot.openedAt.Before(earliestOpenAt) {
			earliestOpenAt = lot.openedAt
		}
		if lot.remaining.LessThanOrEqual(remaining) {
			// Lot fully consumed: remove it from the queue.
			matched = matched.Add(lot.remaining)
			remaining = remaining.Sub(lot.remaining)
			*queue = (*queue)[1:]
		} else {
			// Lot partially consumed: shrink it in place.
			lot.remaining = lot.remaining.Sub(remaining)
			matched = matched.Add(remaining)
			remaining = decimal.Zero
		}
	}
	processed := &result.Processed[index]
	if matched.Sign() > 0 {
		processed.ClosedQuantity = matched
		processed.HoldingDuration = execution.Timestamp.Sub(earliestOpenAt)
		processed.Direction = closeDirection(execution.Side)
	}
	if remaining.Sign() > 0 {
		// Close with no matching open: either corrupted input ordering or a
		// broker-reported close outside the data window. Surface it, don't fail.
		result.Anomalies = append(result.Anomalies, Anomaly{
			AccountID:         execution.AccountID,
			Symbol:            execution.Symbol,
			ExecutionID:       execution.ExecutionID,
			UnmatchedQuantity: remaining,
			Reason:            fmt.Sprintf("closing %s units with no matching open lot", remaining),
		})
	}
}

// closeDirection derives the direction label from the closing side: selling
// closes a long, buying closes a short.
func closeDirection(side tradectldata.Side) Direction {
	if side == tradectldata.SideSell {
		return DirectionLong
	}
	return DirectionShort
}

// lotDirection derives the direction of a newly opened lot. A pure opener
// opens in its own side's direction; a split execution's residual lot opens
// opposite the position it just closed.
func lotDirection(execution *tradectldata.Execution) Direction {
	if execution.Side == tradectldata.SideBuy {
		return DirectionLong
	}
	return DirectionShort
}
