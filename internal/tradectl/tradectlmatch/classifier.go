// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradectlmatch

import (
	"github.com/shopspring/decimal"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

// ClassifierMode selects a Classifier implementation.
type ClassifierMode int

const (
	// ClassifierModePosition tracks the signed net position. This is the
	// default: it handles breakeven closes (realized P&L exactly zero) and
	// executions that close a position and reopen in the opposite direction,
	// but assumes every row reports quantity and side accurately.
	ClassifierModePosition ClassifierMode = iota
	// ClassifierModePnl classifies purely by the broker's realized P&L
	// signal: zero means opener, non-zero means closer. Only valid for feeds
	// whose realized P&L is reliable on every row; split open/close
	// executions are not detected in this mode.
	ClassifierModePnl
)

// String returns the config-file name for the mode.
func (m ClassifierMode) String() string {
	switch m {
	case ClassifierModePnl:
		return "pnl"
	default:
		return "position"
	}
}

// Classification is the classifier's verdict for one execution: how much of
// its quantity closes existing lots and how much opens a new lot. A split
// execution (close then reopen in the opposite direction) has both non-zero.
type Classification struct {
	// CloseQuantity is the magnitude that closes existing open lots.
	CloseQuantity decimal.Decimal
	// OpenQuantity is the magnitude that opens a new lot.
	OpenQuantity decimal.Decimal
}

// Classifier decides whether an execution opens, closes, or splits.
//
// The two implementations encode two different contracts with the upstream
// feed; the mode is selected per account in configuration rather than
// hardcoded, since neither assumption holds for every broker feed.
type Classifier interface {
	// Classify returns the classification of e given the current signed net
	// position for its (account, symbol) partition.
	Classify(position decimal.Decimal, e *tradectldata.Execution) Classification
}

// NewClassifier returns the Classifier for the given mode.
func NewClassifier(mode ClassifierMode) Classifier {
	if mode == ClassifierModePnl {
		return pnlClassifier{}
	}
	return positionClassifier{}
}

// positionClassifier implements net-position-sign tracking.
type positionClassifier struct{}

func (positionClassifier) Classify(position decimal.Decimal, e *tradectldata.Execution) Classification {
	signedQuantity := e.SignedQuantity()
	next := position.Add(signedQuantity)
	// Flat or growing in the same direction: pure opener.
	if position.IsZero() || position.Sign() == signedQuantity.Sign() {
		return Classification{OpenQuantity: e.Quantity}
	}
	// Shrinking or flipping: close up to the current magnitude.
	closeQuantity := decimal.Min(e.Quantity, position.Abs())
	classification := Classification{CloseQuantity: closeQuantity}
	// Overshoot into the opposite direction reopens with the residual.
	if !next.IsZero() && next.Sign() != position.Sign() {
		classification.OpenQuantity = next.Abs()
	}
	return classification
}

// pnlClassifier implements the realized-P&L-signal heuristic.
type pnlClassifier struct{}

func (pnlClassifier) Classify(_ decimal.Decimal, e *tradectldata.Execution) Classification {
	if e.RealizedPnl.IsZero() {
		return Classification{OpenQuantity: e.Quantity}
	}
	return Classification{CloseQuantity: e.Quantity}
}
