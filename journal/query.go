package journal

import (
	"database/sql"
	"fmt"

	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/order"
)

const tradeColumns = `trade_id, run_id, pair, instrument_a, instrument_b,
	units_a, units_b, entry_price_a, entry_price_b,
	exit_price_a, exit_price_b, open_time, close_time,
	holding_days, realized_pl, margin_cost, reason`

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(
		`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesByRun returns every trade of one run ordered by close time.
func (j *SQLite) ListTradesByRun(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(
		`SELECT `+tradeColumns+` FROM trades WHERE run_id = ? ORDER BY close_time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunSummary aggregates one run's closed trades.
type RunSummary struct {
	RunID        string
	Trades       int
	Wins         int
	Losses       int
	GrossProfit  float64
	GrossLoss    float64
	NetPL        float64
	ProfitFactor float64
}

func (j *SQLite) SummarizeRun(runID string) (RunSummary, error) {
	trades, err := j.ListTradesByRun(runID)
	if err != nil {
		return RunSummary{}, err
	}

	s := RunSummary{RunID: runID, Trades: len(trades)}
	for _, t := range trades {
		s.NetPL += t.RealizedPL
		if t.RealizedPL >= 0 {
			s.Wins++
			s.GrossProfit += t.RealizedPL
		} else {
			s.Losses++
			s.GrossLoss += -t.RealizedPL
		}
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	var pair, reason string

	err := s.Scan(
		&rec.TradeID, &rec.RunID, &pair, &rec.InstrumentA, &rec.InstrumentB,
		&rec.UnitsA, &rec.UnitsB, &rec.EntryPriceA, &rec.EntryPriceB,
		&rec.ExitPriceA, &rec.ExitPriceB, &rec.OpenTime, &rec.CloseTime,
		&rec.HoldingDays, &rec.RealizedPL, &rec.MarginCost, &reason,
	)
	if err != nil {
		return TradeRecord{}, err
	}

	rec.Pair = market.PairID(pair)
	if r, ok := order.ParseCloseReason(reason); ok {
		rec.Reason = r
	}
	return rec, nil
}
