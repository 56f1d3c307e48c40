package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	pair TEXT NOT NULL,
	instrument_a TEXT NOT NULL,
	instrument_b TEXT NOT NULL,
	units_a REAL NOT NULL,
	units_b REAL NOT NULL,
	entry_price_a REAL NOT NULL,
	entry_price_b REAL NOT NULL,
	exit_price_a REAL NOT NULL,
	exit_price_b REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	holding_days REAL NOT NULL,
	realized_pl REAL NOT NULL,
	margin_cost REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	run_id TEXT NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin_used REAL NOT NULL,
	free_margin REAL NOT NULL,
	open_pairs INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(close_time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
