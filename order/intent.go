package order

import (
	"fmt"

	"github.com/rustyeddy/pairtrader/market"
)

// Kind says whether an Intent opens a new spread position or reverses an
// existing one.
type Kind int

const (
	Open Kind = iota
	Close
)

func (k Kind) String() string {
	switch k {
	case Open:
		return "open"
	case Close:
		return "close"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CloseReason is the closed set of causes a position can be unwound for.
type CloseReason int

const (
	ReasonNone CloseReason = iota
	ReasonNormal
	ReasonStopLoss
	ReasonTimeout
	ReasonAnomaly
	ReasonPortfolioRisk
	ReasonPairRisk
)

func (r CloseReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNormal:
		return "normal"
	case ReasonStopLoss:
		return "stop_loss"
	case ReasonTimeout:
		return "timeout"
	case ReasonAnomaly:
		return "anomaly"
	case ReasonPortfolioRisk:
		return "portfolio_risk"
	case ReasonPairRisk:
		return "pair_risk"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ParseCloseReason is the inverse of CloseReason.String, used when reading
// journaled trades back.
func ParseCloseReason(s string) (CloseReason, bool) {
	for _, r := range []CloseReason{
		ReasonNone, ReasonNormal, ReasonStopLoss, ReasonTimeout,
		ReasonAnomaly, ReasonPortfolioRisk, ReasonPairRisk,
	} {
		if r.String() == s {
			return r, true
		}
	}
	return ReasonNone, false
}

// Intent is an immutable instruction to open or close a pair position.
// It is produced once per decision and consumed exactly once by the Gateway.
// Open intents carry target sizes; Close intents carry the exact reversal of
// current holdings.
type Intent struct {
	Pair        market.PairID
	InstrumentA string
	InstrumentB string
	UnitsA      float64
	UnitsB      float64
	Kind        Kind
	Reason      CloseReason // ReasonNone for opens
}

// Tag encodes pair, action and reason for downstream traceability.
func (in Intent) Tag() string {
	if in.Kind == Open {
		return fmt.Sprintf("%s|open", in.Pair)
	}
	return fmt.Sprintf("%s|close|%s", in.Pair, in.Reason)
}

// Legs returns the non-zero legs of the intent. A single-leg intent is legal:
// anomaly unwinds close only the surviving leg.
func (in Intent) Legs() []Leg {
	legs := make([]Leg, 0, 2)
	if in.UnitsA != 0 {
		legs = append(legs, Leg{Instrument: in.InstrumentA, Units: in.UnitsA})
	}
	if in.UnitsB != 0 {
		legs = append(legs, Leg{Instrument: in.InstrumentB, Units: in.UnitsB})
	}
	return legs
}

type Leg struct {
	Instrument string
	Units      float64
}
