package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, pair, instrument_a, instrument_b,
		 units_a, units_b, entry_price_a, entry_price_b,
		 exit_price_a, exit_price_b, open_time, close_time,
		 holding_days, realized_pl, margin_cost, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, string(t.Pair), t.InstrumentA, t.InstrumentB,
		t.UnitsA, t.UnitsB, t.EntryPriceA, t.EntryPriceB,
		t.ExitPriceA, t.ExitPriceB, t.OpenTime, t.CloseTime,
		t.HoldingDays, t.RealizedPL, t.MarginCost, t.Reason.String(),
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, run_id, balance, equity, margin_used, free_margin, open_pairs)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Time, e.RunID, e.Balance, e.Equity, e.MarginUsed, e.FreeMargin, e.OpenPairs,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
