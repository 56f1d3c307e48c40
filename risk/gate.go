package risk

import (
	"fmt"

	"github.com/rustyeddy/pairtrader/config"
)

// MarketConditions is the ambient-market input to the open gate, fed from
// outside once per tick.
type MarketConditions struct {
	Volatility float64
	FearIndex  float64
}

// Gate is the market-condition check that suppresses new opens in stressed
// markets. It is not a rule: it never forces a close, has no priority, and
// keeps no state.
type Gate struct {
	cfg config.GateConfig
}

func NewGate(cfg config.GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Allows reports whether new positions may be opened. OR logic: breaching
// either threshold closes the gate.
func (g *Gate) Allows(mc MarketConditions) (bool, string) {
	if !g.cfg.Enabled {
		return true, ""
	}
	if mc.Volatility >= g.cfg.MaxVolatility {
		return false, fmt.Sprintf("volatility %.4f >= %.4f", mc.Volatility, g.cfg.MaxVolatility)
	}
	if mc.FearIndex >= g.cfg.MaxFearIndex {
		return false, fmt.Sprintf("fear index %.1f >= %.1f", mc.FearIndex, g.cfg.MaxFearIndex)
	}
	return true, ""
}
