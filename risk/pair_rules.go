package risk

import (
	"fmt"

	"github.com/rustyeddy/pairtrader/config"
	"github.com/rustyeddy/pairtrader/market"
)

// PositionAnomalyRule fires when the tracker reports the pair's current
// batch resolved anomalously (one leg filled, another failed). Registered at
// the highest pair priority so a broken position is unwound before any other
// pair logic runs.
type PositionAnomalyRule struct {
	ruleParams
}

func NewPositionAnomaly(cfg config.RuleConfig) *PositionAnomalyRule {
	return &PositionAnomalyRule{ruleParams{name: "position_anomaly", class: ClassPositionAnomaly, cfg: cfg}}
}

func (r *PositionAnomalyRule) Check(pc PairContext) (bool, string) {
	if pc.Anomalous {
		return true, fmt.Sprintf("pair %s has an anomalous order batch (mode %s)",
			pc.Pair, pc.Ledger.Mode())
	}
	return false, ""
}

// HoldingTimeoutRule triggers when a position has been held longer than the
// threshold (in days). Timeout is expressed as a close intent, never as
// cancellation of the original orders.
type HoldingTimeoutRule struct {
	ruleParams
}

func NewHoldingTimeout(cfg config.RuleConfig) *HoldingTimeoutRule {
	return &HoldingTimeoutRule{ruleParams{name: "holding_timeout", class: ClassHoldingTimeout, cfg: cfg}}
}

func (r *HoldingTimeoutRule) Check(pc PairContext) (bool, string) {
	if !pc.Ledger.HasPosition() {
		return false, ""
	}
	held := pc.Now.Sub(pc.Ledger.OpenedAt()).Hours() / 24
	if held >= r.cfg.Threshold {
		return true, fmt.Sprintf("held %.1f days >= limit %.0f", held, r.cfg.Threshold)
	}
	return false, ""
}

// PairDrawdownRule is the per-pair high-water-mark rule over unrealized P&L.
// Peaks are keyed by pair so pairs never shadow each other, and the peak for
// a pair resets to its last observed value when that pair's cooldown
// activates.
type PairDrawdownRule struct {
	ruleParams
	peaks map[market.PairID]float64
	last  map[market.PairID]float64
}

func NewPairDrawdown(cfg config.RuleConfig) *PairDrawdownRule {
	return &PairDrawdownRule{
		ruleParams: ruleParams{name: "pair_drawdown", class: ClassPairDrawdown, cfg: cfg},
		peaks:      make(map[market.PairID]float64),
		last:       make(map[market.PairID]float64),
	}
}

func (r *PairDrawdownRule) Check(pc PairContext) (bool, string) {
	if !pc.Ledger.HasPosition() {
		delete(r.peaks, pc.Pair)
		delete(r.last, pc.Pair)
		return false, ""
	}

	pl := pc.UnrealizedPL
	r.last[pc.Pair] = pl
	if pl > r.peaks[pc.Pair] {
		r.peaks[pc.Pair] = pl
	}
	peak := r.peaks[pc.Pair]
	if peak <= 0 {
		return false, ""
	}
	dd := (peak - pl) / peak
	if dd >= r.cfg.Threshold {
		return true, fmt.Sprintf("pair P&L drawdown %.2f%% >= limit %.2f%% (peak %.2f)",
			100*dd, 100*r.cfg.Threshold, peak)
	}
	return false, ""
}

// ResetPeak is invoked by the engine when this pair's cooldown activates.
func (r *PairDrawdownRule) ResetPeak(pair market.PairID) {
	r.peaks[pair] = r.last[pair]
}
