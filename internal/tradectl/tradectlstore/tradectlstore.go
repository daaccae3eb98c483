// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tradectlstore persists the normalized execution log, open-position
// snapshots, equity points, and account snapshots in sqlite.
package tradectlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

// Store is a sqlite-backed store for normalized broker data.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertExecutions inserts or overwrites executions by execution id in one
// transaction. Re-ingesting the same rows is a no-op net change: a row with
// an existing execution_id is overwritten, never duplicated.
func (s *Store) UpsertExecutions(ctx context.Context, executions []tradectldata.Execution) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			retErr = errors.Join(retErr, tx.Rollback())
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO executions
		(execution_id, account_id, symbol, side, quantity, price, commission, currency_code, timestamp, realized_pnl, net_cash, running_balance, calibrated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET
			account_id = excluded.account_id,
			symbol = excluded.symbol,
			side = excluded.side,
			quantity = excluded.quantity,
			price = excluded.price,
			commission = excluded.commission,
			currency_code = excluded.currency_code,
			timestamp = excluded.timestamp,
			realized_pnl = excluded.realized_pnl,
			net_cash = excluded.net_cash,
			running_balance = excluded.running_balance,
			calibrated = excluded.calibrated`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range executions {
		e := &executions[i]
		if _, err := stmt.ExecContext(ctx,
			e.ExecutionID,
			e.AccountID,
			e.Symbol,
			e.Side.String(),
			e.Quantity.String(),
			e.Price.String(),
			e.Commission.String(),
			e.CurrencyCode,
			formatTime(e.Timestamp),
			e.RealizedPnl.String(),
			e.NetCash.String(),
			e.RunningBalance.String(),
			boolToInt(e.Calibrated),
		); err != nil {
			return fmt.Errorf("upserting execution %s: %w", e.ExecutionID, err)
		}
	}
	return tx.Commit()
}

// ListExecutions returns executions for an account in canonical (timestamp,
// execution id) order, optionally scoped to one symbol.
func (s *Store) ListExecutions(ctx context.Context, accountID string, symbol string) ([]tradectldata.Execution, error) {
	query := `
		SELECT execution_id, account_id, symbol, side, quantity, price, commission, currency_code, timestamp, realized_pnl, net_cash, running_balance, calibrated
		FROM executions WHERE account_id = ?`
	args := []any{accountID}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY timestamp, execution_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var executions []tradectldata.Execution
	for rows.Next() {
		var (
			e                                                                           tradectldata.Execution
			side, quantity, price, commission, timestamp, realizedPnl, netCash, balance string
			calibrated                                                                  int
		)
		if err := rows.Scan(
			&e.ExecutionID, &e.AccountID, &e.Symbol, &side, &quantity, &price,
			&commission, &e.CurrencyCode, &timestamp, &realizedPnl, &netCash,
			&balance, &calibrated,
		); err != nil {
			return nil, err
		}
		e.Side = tradectldata.ParseSide(side)
		if e.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("execution %s: parsing quantity: %w", e.ExecutionID, err)
		}
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("execution %s: parsing price: %w", e.ExecutionID, err)
		}
		if e.Commission, err = decimal.NewFromString(commission); err != nil {
			return nil, fmt.Errorf("execution %s: parsing commission: %w", e.ExecutionID, err)
		}
		if e.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("execution %s: parsing timestamp: %w", e.ExecutionID, err)
		}
		if e.RealizedPnl, err = decimal.NewFromString(realizedPnl); err != nil {
			return nil, fmt.Errorf("execution %s: parsing realized pnl: %w", e.ExecutionID, err)
		}
		if e.NetCash, err = decimal.NewFromString(netCash); err != nil {
			return nil, fmt.Errorf("execution %s: parsing net cash: %w", e.ExecutionID, err)
		}
		if e.RunningBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("execution %s: parsing running balance: %w", e.ExecutionID, err)
		}
		e.Calibrated = calibrated != 0
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// CountExecutions returns the number of stored executions for an account.
func (s *Store) CountExecutions(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM executions WHERE account_id = ?`, accountID).Scan(&count)
	return count, err
}

// ReplaceOpenPositions atomically replaces the open-position snapshot for an
// account. The broker feed is a full replacement snapshot, not incremental,
// so prior rows are cleared and new rows inserted within one transaction: a
// concurrent reader never observes the empty intermediate state.
func (s *Store) ReplaceOpenPositions(ctx context.Context, accountID string, positions []tradectldata.OpenPosition) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			retErr = errors.Join(retErr, tx.Rollback())
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM open_positions WHERE account_id = ?`, accountID); err != nil {
		return err
	}
	for i := range positions {
		p := &positions[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO open_positions
			(account_id, symbol, quantity, cost_basis_price, mark_price, position_value, unrealized_pnl, currency_code)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			accountID,
			p.Symbol,
			p.Quantity.String(),
			p.CostBasisPrice.String(),
			p.MarkPrice.String(),
			p.PositionValue.String(),
			p.UnrealizedPnl.String(),
			p.CurrencyCode,
		); err != nil {
			return fmt.Errorf("inserting open position %s: %w", p.Symbol, err)
		}
	}
	return tx.Commit()
}

// ListOpenPositions returns the stored open-position snapshot for an account.
func (s *Store) ListOpenPositions(ctx context.Context, accountID string) ([]tradectldata.OpenPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, symbol, quantity, cost_basis_price, mark_price, position_value, unrealized_pnl, currency_code
		FROM open_positions WHERE account_id = ? ORDER BY symbol`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var positions []tradectldata.OpenPosition
	for rows.Next() {
		var (
			p                                                    tradectldata.OpenPosition
			quantity, costBasis, markPrice, value, unrealizedPnl string
		)
		if err := rows.Scan(&p.AccountID, &p.Symbol, &quantity, &costBasis, &markPrice, &value, &unrealizedPnl, &p.CurrencyCode); err != nil {
			return nil, err
		}
		if p.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("position %s: parsing quantity: %w", p.Symbol, err)
		}
		if p.CostBasisPrice, err = decimal.NewFromString(costBasis); err != nil {
			return nil, fmt.Errorf("position %s: parsing cost basis price: %w", p.Symbol, err)
		}
		if p.MarkPrice, err = decimal.NewFromString(markPrice); err != nil {
			return nil, fmt.Errorf("position %s: parsing mark price: %w", p.Symbol, err)
		}
		if p.PositionValue, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("position %s: parsing position value: %w", p.Symbol, err)
		}
		if p.UnrealizedPnl, err = decimal.NewFromString(unrealizedPnl); err != nil {
			return nil, fmt.Errorf("position %s: parsing unrealized pnl: %w", p.Symbol, err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpsertAccountSnapshot inserts or overwrites the single current-state row
// for an account.
func (s *Store) UpsertAccountSnapshot(ctx context.Context, snapshot tradectldata.AccountSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_snapshots (account_id, starting_cash, ending_cash, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			starting_cash = excluded.starting_cash,
			ending_cash = excluded.ending_cash,
			synced_at = excluded.synced_at`,
		snapshot.AccountID,
		snapshot.StartingCash.String(),
		snapshot.EndingCash.String(),
		formatTime(snapshot.SyncedAt),
	)
	return err
}

// GetAccountSnapshot returns the current-state row for an account, or nil if
// the account has never synced.
func (s *Store) GetAccountSnapshot(ctx context.Context, accountID string) (*tradectldata.AccountSnapshot, error) {
	var (
		snapshot                           tradectldata.AccountSnapshot
		startingCash, endingCash, syncedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, starting_cash, ending_cash, synced_at
		FROM account_snapshots WHERE account_id = ?`, accountID,
	).Scan(&snapshot.AccountID, &startingCash, &endingCash, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if snapshot.StartingCash, err = decimal.NewFromString(startingCash); err != nil {
		return nil, fmt.Errorf("parsing starting cash: %w", err)
	}
	if snapshot.EndingCash, err = decimal.NewFromString(endingCash); err != nil {
		return nil, fmt.Errorf("parsing ending cash: %w", err)
	}
	if snapshot.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, fmt.Errorf("parsing synced at: %w", err)
	}
	return &snapshot, nil
}

// UpsertEquityPoints inserts or overwrites equity points by (account, report
// date) in one transaction.
func (s *Store) UpsertEquityPoints(ctx context.Context, points []tradectldata.EquityPoint) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			retErr = errors.Join(retErr, tx.Rollback())
		}
	}()
	for i := range points {
		p := &points[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO equity_points (account_id, report_date, total_equity, cash, stock_value)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, report_date) DO UPDATE SET
				total_equity = excluded.total_equity,
				cash = excluded.cash,
				stock_value = excluded.stock_value`,
			p.AccountID,
			formatTime(p.ReportDate),
			p.TotalEquity.String(),
			p.Cash.String(),
			p.StockValue.String(),
		); err != nil {
			return fmt.Errorf("upserting equity point %s: %w", p.ReportDate.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

// ListEquityPoints returns the equity series for an account ordered by report date.
func (s *Store) ListEquityPoints(ctx context.Context, accountID string) ([]tradectldata.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, report_date, total_equity, cash, stock_value
		FROM equity_points WHERE account_id = ? ORDER BY report_date`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var points []tradectldata.EquityPoint
	for rows.Next() {
		var (
			p                               tradectldata.EquityPoint
			reportDate, total, cash, stock string
		)
		if err := rows.Scan(&p.AccountID, &reportDate, &total, &cash, &stock); err != nil {
			return nil, err
		}
		if p.ReportDate, err = parseTime(reportDate); err != nil {
			return nil, fmt.Errorf("parsing report date: %w", err)
		}
		if p.TotalEquity, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parsing total equity: %w", err)
		}
		if p.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("parsing cash: %w", err)
		}
		if p.StockValue, err = decimal.NewFromString(stock); err != nil {
			return nil, fmt.Errorf("parsing stock value: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// boolToInt serializes a bool for storage: sqlite has no boolean type.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is RFC 3339 UTC with a fixed-width fraction so lexical and
// chronological ordering agree in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime serializes a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a timestamp stored by formatTime.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
