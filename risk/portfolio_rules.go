package risk

import (
	"fmt"
	"time"

	"github.com/rustyeddy/pairtrader/config"
)

// ruleParams is the shared parameterization every concrete rule embeds.
type ruleParams struct {
	name  string
	class RuleClass
	cfg   config.RuleConfig
}

func (p ruleParams) Name() string     { return p.name }
func (p ruleParams) Class() RuleClass { return p.class }
func (p ruleParams) Priority() int    { return p.cfg.Priority }
func (p ruleParams) Enabled() bool    { return p.cfg.Enabled }
func (p ruleParams) Cooldown() time.Duration {
	return time.Duration(p.cfg.CooldownDays) * 24 * time.Hour
}

// MaxLossRule triggers when equity has fallen a threshold fraction below
// initial capital.
type MaxLossRule struct {
	ruleParams
}

func NewMaxLoss(cfg config.RuleConfig) *MaxLossRule {
	return &MaxLossRule{ruleParams{name: "max_loss", class: ClassMaxLoss, cfg: cfg}}
}

func (r *MaxLossRule) Check(snap PortfolioSnapshot) (bool, string) {
	if snap.InitialCapital <= 0 {
		return false, ""
	}
	loss := (snap.InitialCapital - snap.Equity) / snap.InitialCapital
	if loss >= r.cfg.Threshold {
		return true, fmt.Sprintf("account loss %.2f%% >= limit %.2f%%",
			100*loss, 100*r.cfg.Threshold)
	}
	return false, ""
}

// PortfolioDrawdownRule is a high-water-mark rule over equity: it tracks the
// running peak and triggers when (peak-equity)/peak reaches the threshold
// (>=, so an exact-threshold drawdown triggers). On cooldown activation the
// peak resets to the last observed equity so the same excursion does not
// re-trigger once the cooldown expires.
type PortfolioDrawdownRule struct {
	ruleParams
	peak float64
	last float64
}

func NewPortfolioDrawdown(cfg config.RuleConfig) *PortfolioDrawdownRule {
	return &PortfolioDrawdownRule{
		ruleParams: ruleParams{name: "portfolio_drawdown", class: ClassPortfolioDrawdown, cfg: cfg},
	}
}

func (r *PortfolioDrawdownRule) Check(snap PortfolioSnapshot) (bool, string) {
	r.last = snap.Equity
	if snap.Equity > r.peak {
		r.peak = snap.Equity
	}
	if r.peak <= 0 {
		return false, ""
	}
	dd := (r.peak - snap.Equity) / r.peak
	if dd >= r.cfg.Threshold {
		return true, fmt.Sprintf("portfolio drawdown %.2f%% >= limit %.2f%% (peak %.2f)",
			100*dd, 100*r.cfg.Threshold, r.peak)
	}
	return false, ""
}

// ResetPeak is invoked by the engine when the rule's cooldown activates.
func (r *PortfolioDrawdownRule) ResetPeak() {
	r.peak = r.last
}

// Peak exposes the current high-water mark.
func (r *PortfolioDrawdownRule) Peak() float64 { return r.peak }
