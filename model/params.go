// Package model carries the per-pair parameter bundles produced by the
// upstream statistical pipeline (cointegration testing and parameter
// estimation happen outside this process; we only consume the results).
package model

import (
	"fmt"

	"github.com/rustyeddy/pairtrader/market"
)

// Class ranks how the upstream selection currently views a pair.
type Class int

const (
	// Prime pairs are in the current tradable universe.
	Prime Class = iota
	// Watch pairs passed screening but are not yet cleared for entry.
	Watch
	// Legacy pairs dropped out of the feed while we still hold a position.
	// They are managed until closed but never re-entered.
	Legacy
)

func (c Class) String() string {
	switch c {
	case Prime:
		return "prime"
	case Watch:
		return "watch"
	case Legacy:
		return "legacy"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Params is one pair's spread model: spread = priceA - (alpha + beta*priceB),
// standardized against the residual distribution.
type Params struct {
	InstrumentA  string
	InstrumentB  string
	Alpha        float64
	Beta         float64
	ResidualMean float64
	ResidualStd  float64
	QualityScore float64
	Class        Class
}

func (p Params) Pair() market.PairID {
	return market.NewPairID(p.InstrumentA, p.InstrumentB)
}

func (p Params) Validate() error {
	if p.InstrumentA == "" || p.InstrumentB == "" {
		return fmt.Errorf("params: both instruments required")
	}
	if p.InstrumentA == p.InstrumentB {
		return fmt.Errorf("params: pair legs must differ, got %q twice", p.InstrumentA)
	}
	if p.ResidualStd <= 0 {
		return fmt.Errorf("params %s/%s: residual std must be positive, got %v",
			p.InstrumentA, p.InstrumentB, p.ResidualStd)
	}
	if p.Beta == 0 {
		return fmt.Errorf("params %s/%s: hedge ratio must be non-zero",
			p.InstrumentA, p.InstrumentB)
	}
	return nil
}
