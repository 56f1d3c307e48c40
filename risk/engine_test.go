package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/pairtrader/config"
	"github.com/rustyeddy/pairtrader/market"
)

var rt0 = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// stubRule is a portfolio rule with a scripted verdict, for engine tests.
type stubRule struct {
	name     string
	priority int
	enabled  bool
	cooldown time.Duration
	fire     bool
	panics   bool
}

func (r *stubRule) Name() string            { return r.name }
func (r *stubRule) Class() RuleClass        { return ClassPortfolioDrawdown }
func (r *stubRule) Priority() int           { return r.priority }
func (r *stubRule) Enabled() bool           { return r.enabled }
func (r *stubRule) Cooldown() time.Duration { return r.cooldown }
func (r *stubRule) Check(snap PortfolioSnapshot) (bool, string) {
	if r.panics {
		panic("scripted panic")
	}
	return r.fire, r.name
}

type stubPairRule struct {
	stubRule
}

func (r *stubPairRule) Check(pc PairContext) (bool, string) {
	if r.panics {
		panic("scripted panic")
	}
	return r.fire, r.name
}

func TestEvalPortfolioPicksHighestPriority(t *testing.T) {
	t.Parallel()

	low := &stubRule{name: "low", priority: 10, enabled: true, fire: true}
	high := &stubRule{name: "high", priority: 90, enabled: true, fire: true}

	e := NewEngine()
	e.RegisterPortfolio(low)
	e.RegisterPortfolio(high)

	trig := e.EvalPortfolio(PortfolioSnapshot{}, rt0)
	assert.NotNil(t, trig)
	assert.Equal(t, "high", trig.Rule.Name())
}

func TestEvalPortfolioDeterministicUnderRegistrationOrder(t *testing.T) {
	t.Parallel()

	build := func(order []string) string {
		e := NewEngine()
		for _, name := range order {
			pri := 50
			if name == "top" {
				pri = 99
			}
			e.RegisterPortfolio(&stubRule{name: name, priority: pri, enabled: true, fire: true})
		}
		trig := e.EvalPortfolio(PortfolioSnapshot{}, rt0)
		return trig.Rule.Name()
	}

	assert.Equal(t, "top", build([]string{"a", "top", "b"}))
	assert.Equal(t, "top", build([]string{"top", "b", "a"}))
	assert.Equal(t, "top", build([]string{"b", "a", "top"}))
}

func TestEqualPriorityBreaksTiesByRegistration(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.RegisterPortfolio(&stubRule{name: "first", priority: 50, enabled: true, fire: true})
	e.RegisterPortfolio(&stubRule{name: "second", priority: 50, enabled: true, fire: true})

	trig := e.EvalPortfolio(PortfolioSnapshot{}, rt0)
	assert.Equal(t, "first", trig.Rule.Name())
}

func TestDisabledRuleNeverEvaluated(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.RegisterPortfolio(&stubRule{name: "off", priority: 90, enabled: false, fire: true})
	e.RegisterPortfolio(&stubRule{name: "on", priority: 10, enabled: true, fire: true})

	trig := e.EvalPortfolio(PortfolioSnapshot{}, rt0)
	assert.Equal(t, "on", trig.Rule.Name())
}

func TestCooldownSuppressesDetectionAndMovesForwardOnly(t *testing.T) {
	t.Parallel()

	r := &stubRule{name: "dd", priority: 50, enabled: true, fire: true, cooldown: 48 * time.Hour}
	e := NewEngine()
	e.RegisterPortfolio(r)

	e.ActivateCooldown(r, rt0)
	until := e.CooldownUntil("dd")
	assert.Equal(t, rt0.Add(48*time.Hour), until)

	assert.Nil(t, e.EvalPortfolio(PortfolioSnapshot{}, rt0.Add(time.Hour)))
	assert.True(t, e.Frozen(rt0.Add(time.Hour)))

	// Re-activating from an earlier timestamp never shortens the window.
	e.ActivateCooldown(r, rt0.Add(-24*time.Hour))
	assert.Equal(t, until, e.CooldownUntil("dd"))

	assert.NotNil(t, e.EvalPortfolio(PortfolioSnapshot{}, until.Add(time.Minute)))
	assert.False(t, e.Frozen(until.Add(time.Minute)))
}

func TestPanickingRuleTreatedAsNotTriggered(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.RegisterPortfolio(&stubRule{name: "bad", priority: 90, enabled: true, panics: true})
	e.RegisterPortfolio(&stubRule{name: "good", priority: 10, enabled: true, fire: true})

	trig := e.EvalPortfolio(PortfolioSnapshot{}, rt0)
	assert.NotNil(t, trig)
	assert.Equal(t, "good", trig.Rule.Name())
}

func TestPairCooldownIsPerPair(t *testing.T) {
	t.Parallel()

	r := &stubPairRule{stubRule{name: "pdd", priority: 50, enabled: true, fire: true, cooldown: 24 * time.Hour}}
	e := NewEngine()
	e.RegisterPair(r)

	pairA := market.NewPairID("AAA", "BBB")
	pairB := market.NewPairID("CCC", "DDD")

	e.ActivatePairCooldown(r, pairA, rt0)

	assert.Nil(t, e.EvalPair(PairContext{Pair: pairA, Now: rt0.Add(time.Hour)}, rt0.Add(time.Hour)))
	assert.NotNil(t, e.EvalPair(PairContext{Pair: pairB, Now: rt0.Add(time.Hour)}, rt0.Add(time.Hour)))

	// A pair cooldown never freezes the portfolio.
	assert.False(t, e.Frozen(rt0.Add(time.Hour)))
}

func TestActivateCooldownResetsDrawdownPeak(t *testing.T) {
	t.Parallel()

	r := NewPortfolioDrawdown(config.RuleConfig{Enabled: true, Priority: 90, Threshold: 0.15, CooldownDays: 30})
	e := NewEngine()
	e.RegisterPortfolio(r)

	r.Check(PortfolioSnapshot{Equity: 1_000_000})
	r.Check(PortfolioSnapshot{Equity: 840_000})
	assert.Equal(t, 1_000_000.0, r.Peak())

	e.ActivateCooldown(r, rt0)
	assert.Equal(t, 840_000.0, r.Peak())

	// The same excursion does not re-trigger once the cooldown expires.
	after := e.CooldownUntil(r.Name()).Add(time.Minute)
	assert.Nil(t, e.EvalPortfolio(PortfolioSnapshot{Equity: 840_000}, after))
}
