// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tradectlsync orchestrates ingestion: fetch broker statements,
// normalize and deduplicate executions, reconstruct running balances, and
// persist the results.
package tradectlsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradectl/tradectl/internal/pkg/activitycsv"
	"github.com/tradectl/tradectl/internal/pkg/flexquery"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlbalance"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlconfig"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlstore"
)

// Syncer is the interface for ingesting broker data for configured accounts.
type Syncer interface {
	// Sync ingests all configured report types for one account.
	Sync(ctx context.Context, alias string) (*Result, error)
	// Import ingests Activity Statement CSV trades for one account through
	// the same normalize/dedupe/persist pipeline.
	Import(ctx context.Context, alias string, trades []activitycsv.Trade) (*Result, error)
}

// Result summarizes one ingestion run. Warnings collect every degraded-data
// and transient-failure note; the run itself only fails on configuration or
// storage errors.
type Result struct {
	// AccountID is the account alias that was synced.
	AccountID string
	// ExecutionCount is the number of executions upserted.
	ExecutionCount int
	// OpenPositionCount is the number of open-position snapshot rows stored.
	OpenPositionCount int
	// EquityPointCount is the number of equity points upserted.
	EquityPointCount int
	// FetchFailures is the number of report fetches that failed.
	FetchFailures int
	// Calibrated reports whether the balance series had a known anchor.
	Calibrated bool
	// BalanceDelta is the computed-vs-reported ending cash difference.
	BalanceDelta decimal.Decimal
	// HasBalanceDelta reports whether the statement reported ending cash.
	HasBalanceDelta bool
	// Warnings lists all degraded-data and transient-failure notes.
	Warnings []string
}

// Summary returns a single human-readable line describing the run.
func (r *Result) Summary() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "synced %s: %d executions, %d positions, %d equity points",
		r.AccountID, r.ExecutionCount, r.OpenPositionCount, r.EquityPointCount)
	if r.FetchFailures > 0 {
		fmt.Fprintf(&builder, " (partial: %d report fetch failures)", r.FetchFailures)
	}
	if r.HasBalanceDelta && !r.BalanceDelta.IsZero() {
		fmt.Fprintf(&builder, ", ending balance differs by %s from broker-reported total", r.BalanceDelta)
	}
	if !r.Calibrated {
		builder.WriteString(", balance series uncalibrated (no starting-cash anchor)")
	}
	return builder.String()
}

// NewSyncer creates a new Syncer with all required dependencies. The token
// is the Flex Web Service token from the IBKR_TOKEN environment variable.
func NewSyncer(
	logger *slog.Logger,
	token string,
	config *tradectlconfig.Config,
	client flexquery.Client,
	store *tradectlstore.Store,
) Syncer {
	return &syncer{
		logger:       logger,
		token:        token,
		config:       config,
		client:       client,
		store:        store,
		accountLocks: make(map[string]*sync.Mutex),
	}
}

type syncer struct {
	logger *slog.Logger
	token  string
	config *tradectlconfig.Config
	client flexquery.Client
	store  *tradectlstore.Store

	// accountLocks serializes ingestion per account: two concurrent runs
	// over partially-overlapping inputs would otherwise compute divergent
	// running-balance series row by row.
	accountLocksMu sync.Mutex
	accountLocks   map[string]*sync.Mutex
}

// reportFetch is the outcome of downloading one report type.
type reportFetch struct {
	name      string
	statement *flexquery.Statement
	err       error
}

func (s *syncer) Sync(ctx context.Context, alias string) (*Result, error) {
	account, ok := s.config.Accounts[alias]
	if !ok {
		return nil, fmt.Errorf("account %q is not configured", alias)
	}
	unlock := s.lockAccount(alias)
	defer unlock()
	result := &Result{AccountID: alias}
	// Fetch each configured report type. Report types are independent, so
	// they run concurrently; within one report the request/poll/fetch phases
	// are sequential inside the client.
	fetches := s.fetchReports(ctx, account)
	var statements []*flexquery.Statement
	for _, fetch := range fetches {
		if fetch.err != nil {
			// Transient feed failure: zero results for this report type,
			// processing of the other report type continues.
			result.FetchFailures++
			result.Warnings = append(result.Warnings, fmt.Sprintf("fetching %s report: %v", fetch.name, fetch.err))
			s.logger.Warn("report fetch failed", "account", alias, "report", fetch.name, "error", fetch.err)
			continue
		}
		statements = append(statements, fetch.statement)
	}
	if len(statements) == 0 {
		// Nothing fetched: leave previously stored data untouched.
		return result, nil
	}
	// Merge and dedupe: a pure, single-threaded reduction over the
	// concatenated per-report trade lists.
	var raws []flexquery.RawTrade
	for _, statement := range statements {
		raws = append(raws, statement.Trades...)
	}
	executions, warnings := normalizeTrades(alias, raws, time.Now)
	result.Warnings = append(result.Warnings, warnings...)
	executions = dedupeExecutions(executions)
	executions = applyCutoff(executions, account.ExcludeBefore)
	tradectldata.SortExecutions(executions)
	// Reconstruct the running balance series and persist.
	anchors := s.resolveAnchors(account, statements)
	series := tradectlbalance.Annotate(account.BalancePolicy, executions, anchors)
	result.Calibrated = series.Calibrated
	if delta, ok := tradectlbalance.EndingCashDelta(series, anchors); ok {
		result.BalanceDelta = delta
		result.HasBalanceDelta = true
		if !delta.IsZero() {
			result.Warnings = append(result.Warnings, fmt.Sprintf("computed ending balance differs from broker-reported ending cash by %s", delta))
			s.logger.Warn("ending balance mismatch", "account", alias, "delta", delta.String())
		}
	}
	if err := s.store.UpsertExecutions(ctx, executions); err != nil {
		return nil, fmt.Errorf("storing executions: %w", err)
	}
	result.ExecutionCount = len(executions)
	s.logger.Info("executions stored", "account", alias, "count", len(executions))
	// The open-positions feed is a full replacement snapshot: the latest
	// fetched statement is authoritative, even when it reports no positions.
	positions, warnings := convertPositions(alias, statements[len(statements)-1].OpenPositions)
	result.Warnings = append(result.Warnings, warnings...)
	if err := s.store.ReplaceOpenPositions(ctx, alias, positions); err != nil {
		return nil, fmt.Errorf("replacing open positions: %w", err)
	}
	result.OpenPositionCount = len(positions)
	// Equity points from all statements, upserted by (account, report date).
	var points []tradectldata.EquityPoint
	for _, statement := range statements {
		converted, warnings := convertEquityPoints(alias, statement.EquitySummaries)
		result.Warnings = append(result.Warnings, warnings...)
		points = append(points, converted...)
	}
	if err := s.store.UpsertEquityPoints(ctx, points); err != nil {
		return nil, fmt.Errorf("storing equity points: %w", err)
	}
	result.EquityPointCount = len(points)
	if err := s.store.UpsertAccountSnapshot(ctx, tradectldata.AccountSnapshot{
		AccountID:    alias,
		StartingCash: anchors.StatementStartingCash,
		EndingCash:   anchors.StatementEndingCash,
		SyncedAt:     time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("storing account snapshot: %w", err)
	}
	s.logger.Info("sync complete", "account", alias, "summary", result.Summary())
	return result, nil
}

func (s *syncer) Import(ctx context.Context, alias string, trades []activitycsv.Trade) (*Result, error) {
	account, ok := s.config.Accounts[alias]
	if !ok {
		return nil, fmt.Errorf("account %q is not configured", alias)
	}
	unlock := s.lockAccount(alias)
	defer unlock()
	result := &Result{AccountID: alias}
	imported, warnings := normalizeCSVTrades(alias, trades)
	result.Warnings = append(result.Warnings, warnings...)
	// Merge with the stored log so the running-balance series stays
	// consistent across the combined history.
	stored, err := s.store.ListExecutions(ctx, alias, "")
	if err != nil {
		return nil, fmt.Errorf("listing stored executions: %w", err)
	}
	executions := dedupeExecutions(append(stored, imported...))
	executions = applyCutoff(executions, account.ExcludeBefore)
	tradectldata.SortExecutions(executions)
	anchors := tradectlbalance.Anchors{
		ConfiguredStartingCash:    account.StartingCash,
		HasConfiguredStartingCash: account.HasStartingCash,
	}
	series := tradectlbalance.Annotate(account.BalancePolicy, executions, anchors)
	result.Calibrated = series.Calibrated
	if err := s.store.UpsertExecutions(ctx, executions); err != nil {
		return nil, fmt.Errorf("storing executions: %w", err)
	}
	result.ExecutionCount = len(executions)
	s.logger.Info("import complete", "account", alias, "count", len(executions))
	return result, nil
}

// fetchReports downloads all configured report types concurrently. The
// returned slice preserves report order: historical first, then current.
func (s *syncer) fetchReports(ctx context.Context, account tradectlconfig.AccountConfig) []reportFetch {
	type reportSpec struct {
		name    string
		queryID string
	}
	var specs []reportSpec
	if account.HistoricalQueryID != "" {
		specs = append(specs, reportSpec{name: "historical", queryID: account.HistoricalQueryID})
	}
	specs = append(specs, reportSpec{name: "current", queryID: account.QueryID})
	fetches := make([]reportFetch, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statement, err := s.client.Download(ctx, s.token, spec.queryID)
			fetches[i] = reportFetch{name: spec.name, statement: statement, err: err}
		}()
	}
	wg.Wait()
	return fetches
}

// resolveAnchors extracts balance anchors from the fetched statements and
// the account configuration. Starting cash comes from the earliest statement
// reporting it (the historical report covers the older range), ending cash
// from the latest.
func (s *syncer) resolveAnchors(account tradectlconfig.AccountConfig, statements []*flexquery.Statement) tradectlbalance.Anchors {
	anchors := tradectlbalance.Anchors{
		ConfiguredStartingCash:    account.StartingCash,
		HasConfiguredStartingCash: account.HasStartingCash,
	}
	for _, statement := range statements {
		if !anchors.HasStatementStartingCash && statement.StartingCash != "" {
			if startingCash, err := parseDecimal(statement.StartingCash); err == nil {
				anchors.StatementStartingCash = startingCash
				anchors.HasStatementStartingCash = true
			}
		}
		if statement.EndingCash != "" {
			if endingCash, err := parseDecimal(statement.EndingCash); err == nil {
				anchors.StatementEndingCash = endingCash
				anchors.HasStatementEndingCash = true
			}
		}
	}
	return anchors
}

// lockAccount acquires the per-account ingestion lock.
func (s *syncer) lockAccount(alias string) func() {
	s.accountLocksMu.Lock()
	lock, ok := s.accountLocks[alias]
	if !ok {
		lock = &sync.Mutex{}
		s.accountLocks[alias] = lock
	}
	s.accountLocksMu.Unlock()
	lock.Lock()
	return lock.Unlock
}
