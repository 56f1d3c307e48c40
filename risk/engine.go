package risk

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/pairtrader/market"
)

var log = logrus.WithField("module", "risk")

// PortfolioTrigger is the engine's verdict for one portfolio-scope pass.
type PortfolioTrigger struct {
	Rule PortfolioRule
	Desc string
}

// PairTrigger is the winning rule for one pair on one pass.
type PairTrigger struct {
	Pair market.PairID
	Rule PairRule
	Desc string
}

// Engine is the rule registry and scheduler. Rules are kept sorted by
// descending priority; registration order breaks ties deterministically
// (stable sort). Cooldowns are activated by the caller only after the
// resulting intents actually went out, so a rule whose intents all fail to
// submit keeps firing.
type Engine struct {
	portfolio []PortfolioRule
	pair      []PairRule

	cooldowns     map[string]time.Time
	pairCooldowns map[string]map[market.PairID]time.Time
}

func NewEngine() *Engine {
	return &Engine{
		cooldowns:     make(map[string]time.Time),
		pairCooldowns: make(map[string]map[market.PairID]time.Time),
	}
}

func (e *Engine) RegisterPortfolio(r PortfolioRule) {
	e.portfolio = append(e.portfolio, r)
	sort.SliceStable(e.portfolio, func(i, j int) bool {
		return e.portfolio[i].Priority() > e.portfolio[j].Priority()
	})
}

func (e *Engine) RegisterPair(r PairRule) {
	e.pair = append(e.pair, r)
	sort.SliceStable(e.pair, func(i, j int) bool {
		return e.pair[i].Priority() > e.pair[j].Priority()
	})
}

// EvalPortfolio scans portfolio rules in priority order and returns on the
// first enabled, non-cooled-down rule that triggers. At most one global
// liquidation action fires per tick.
func (e *Engine) EvalPortfolio(snap PortfolioSnapshot, now time.Time) *PortfolioTrigger {
	for _, r := range e.portfolio {
		if !r.Enabled() || e.cooldowns[r.Name()].After(now) {
			continue
		}
		ok, desc := e.checkPortfolio(r, snap)
		if !ok {
			continue
		}
		log.WithFields(logrus.Fields{
			"rule": r.Name(),
			"desc": desc,
		}).Warn("portfolio risk rule triggered")
		return &PortfolioTrigger{Rule: r, Desc: desc}
	}
	return nil
}

// EvalPair evaluates the full ordered pair-rule list against one pair and
// returns the first trigger. Different pairs may close for different reasons
// on the same tick.
func (e *Engine) EvalPair(pc PairContext, now time.Time) *PairTrigger {
	for _, r := range e.pair {
		if !r.Enabled() || e.pairCooldowns[r.Name()][pc.Pair].After(now) {
			continue
		}
		ok, desc := e.checkPair(r, pc)
		if !ok {
			continue
		}
		log.WithFields(logrus.Fields{
			"rule": r.Name(),
			"pair": pc.Pair,
			"desc": desc,
		}).Warn("pair risk rule triggered")
		return &PairTrigger{Pair: pc.Pair, Rule: r, Desc: desc}
	}
	return nil
}

// ActivateCooldown puts a portfolio rule to sleep, only ever moving the
// wake-up time forward. Drawdown-style rules also reset their peak here so
// the same excursion does not re-trigger the moment the cooldown expires.
func (e *Engine) ActivateCooldown(r PortfolioRule, now time.Time) {
	until := now.Add(r.Cooldown())
	if until.After(e.cooldowns[r.Name()]) {
		e.cooldowns[r.Name()] = until
	}
	if pr, ok := r.(interface{ ResetPeak() }); ok {
		pr.ResetPeak()
	}
	log.WithFields(logrus.Fields{
		"rule":  r.Name(),
		"until": e.cooldowns[r.Name()],
	}).Info("portfolio rule cooldown activated")
}

// ActivatePairCooldown is the per-pair variant: one pair's cooldown never
// suppresses detection for another pair.
func (e *Engine) ActivatePairCooldown(r PairRule, pair market.PairID, now time.Time) {
	m := e.pairCooldowns[r.Name()]
	if m == nil {
		m = make(map[market.PairID]time.Time)
		e.pairCooldowns[r.Name()] = m
	}
	until := now.Add(r.Cooldown())
	if until.After(m[pair]) {
		m[pair] = until
	}
	if pr, ok := r.(interface{ ResetPeak(market.PairID) }); ok {
		pr.ResetPeak(pair)
	}
	log.WithFields(logrus.Fields{
		"rule":  r.Name(),
		"pair":  pair,
		"until": m[pair],
	}).Info("pair rule cooldown activated")
}

// Frozen reports whether any portfolio rule is currently cooled down, which
// freezes all trading for the tick.
func (e *Engine) Frozen(now time.Time) bool {
	for _, until := range e.cooldowns {
		if until.After(now) {
			return true
		}
	}
	return false
}

// CooldownUntil exposes a portfolio rule's wake-up time.
func (e *Engine) CooldownUntil(name string) time.Time {
	return e.cooldowns[name]
}

// PairCooldownUntil exposes a pair rule's per-pair wake-up time.
func (e *Engine) PairCooldownUntil(name string, pair market.PairID) time.Time {
	return e.pairCooldowns[name][pair]
}

// A rule that panics is logged and treated as not triggered for the tick:
// fail-open per rule so one misbehaving predicate cannot halt the engine.
func (e *Engine) checkPortfolio(r PortfolioRule, snap PortfolioSnapshot) (ok bool, desc string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithFields(logrus.Fields{
				"rule":  r.Name(),
				"panic": rec,
			}).Error("portfolio rule panicked, treated as not triggered")
			ok = false
		}
	}()
	return r.Check(snap)
}

func (e *Engine) checkPair(r PairRule, pc PairContext) (ok bool, desc string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithFields(logrus.Fields{
				"rule":  r.Name(),
				"pair":  pc.Pair,
				"panic": rec,
			}).Error("pair rule panicked, treated as not triggered")
			ok = false
		}
	}()
	return r.Check(pc)
}
