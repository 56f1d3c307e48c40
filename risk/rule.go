package risk

import (
	"fmt"
	"time"

	"github.com/rustyeddy/pairtrader/ledger"
	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/order"
)

// RuleClass is the closed set of rule kinds. The class, not the individual
// rule, determines the close reason attached to generated intents, checked
// exhaustively at compile time by CloseReason below.
type RuleClass int

const (
	ClassMaxLoss RuleClass = iota
	ClassPortfolioDrawdown
	ClassHoldingTimeout
	ClassPairDrawdown
	ClassPositionAnomaly
)

func (c RuleClass) String() string {
	switch c {
	case ClassMaxLoss:
		return "max_loss"
	case ClassPortfolioDrawdown:
		return "portfolio_drawdown"
	case ClassHoldingTimeout:
		return "holding_timeout"
	case ClassPairDrawdown:
		return "pair_drawdown"
	case ClassPositionAnomaly:
		return "position_anomaly"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// CloseReason maps a rule class to the reason tagged onto the close intents
// it generates.
func (c RuleClass) CloseReason() order.CloseReason {
	switch c {
	case ClassMaxLoss, ClassPortfolioDrawdown:
		return order.ReasonPortfolioRisk
	case ClassHoldingTimeout:
		return order.ReasonTimeout
	case ClassPairDrawdown:
		return order.ReasonPairRisk
	case ClassPositionAnomaly:
		return order.ReasonAnomaly
	default:
		return order.ReasonPairRisk
	}
}

// PortfolioSnapshot is the portfolio-wide state a portfolio-scope rule reads.
type PortfolioSnapshot struct {
	Balance        float64
	Equity         float64
	InitialCapital float64
	MarginUsed     float64
	FreeMargin     float64
	OpenPairs      int
}

// PairContext is the per-pair state a pair-scope rule reads: one ledger plus
// the tracker's anomaly signal.
type PairContext struct {
	Pair         market.PairID
	Ledger       *ledger.Ledger
	UnrealizedPL float64
	Anomalous    bool
	Now          time.Time
}

// PortfolioRule is a pure predicate over portfolio state. Parameterization
// (enabled, priority, threshold, cooldown) lives with the rule; the engine
// owns evaluation order and cooldown bookkeeping.
type PortfolioRule interface {
	Name() string
	Class() RuleClass
	Priority() int
	Enabled() bool
	Cooldown() time.Duration
	Check(snap PortfolioSnapshot) (bool, string)
}

// PairRule is a pure predicate over one pair's state.
type PairRule interface {
	Name() string
	Class() RuleClass
	Priority() int
	Enabled() bool
	Cooldown() time.Duration
	Check(pc PairContext) (bool, string)
}
