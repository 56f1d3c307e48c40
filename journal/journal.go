package journal

import (
	"time"

	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/order"
)

// TradeRecord is one closed pair trade, emitted to the analytics collaborator
// when a close batch completes. Both legs are carried so sign consistency can
// be checked downstream.
type TradeRecord struct {
	TradeID     string
	RunID       string
	Pair        market.PairID
	InstrumentA string
	InstrumentB string
	UnitsA      float64
	UnitsB      float64
	EntryPriceA float64
	EntryPriceB float64
	ExitPriceA  float64
	ExitPriceB  float64
	OpenTime    time.Time
	CloseTime   time.Time
	HoldingDays float64
	RealizedPL  float64
	MarginCost  float64
	Reason      order.CloseReason
}

// EquitySnapshot is the per-tick portfolio curve point.
type EquitySnapshot struct {
	Time       time.Time
	RunID      string
	Balance    float64
	Equity     float64
	MarginUsed float64
	FreeMargin float64
	OpenPairs  int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}
