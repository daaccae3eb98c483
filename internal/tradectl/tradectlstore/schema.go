// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradectlstore

// schema is applied on every open; all statements are idempotent.
//
// Decimal values are stored as their exact string representation and
// timestamps as RFC 3339 UTC strings, so a round trip through the store is
// byte-identical.
const schema = `
CREATE TABLE IF NOT EXISTS executions (
	execution_id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	commission TEXT NOT NULL,
	currency_code TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	net_cash TEXT NOT NULL,
	running_balance TEXT NOT NULL,
	calibrated INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_account ON executions(account_id, timestamp, execution_id);

CREATE TABLE IF NOT EXISTS open_positions (
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity TEXT NOT NULL,
	cost_basis_price TEXT NOT NULL,
	mark_price TEXT NOT NULL,
	position_value TEXT NOT NULL,
	unrealized_pnl TEXT NOT NULL,
	currency_code TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_open_positions_account ON open_positions(account_id);

CREATE TABLE IF NOT EXISTS equity_points (
	account_id TEXT NOT NULL,
	report_date TEXT NOT NULL,
	total_equity TEXT NOT NULL,
	cash TEXT NOT NULL,
	stock_value TEXT NOT NULL,
	PRIMARY KEY (account_id, report_date)
);

CREATE TABLE IF NOT EXISTS account_snapshots (
	account_id TEXT PRIMARY KEY,
	starting_cash TEXT NOT NULL,
	ending_cash TEXT NOT NULL,
	synced_at TEXT NOT NULL
);
`
