package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/pairtrader/config"
	"github.com/rustyeddy/pairtrader/ledger"
	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/model"
	"github.com/rustyeddy/pairtrader/order"
)

func openLedger(t *testing.T, a, b string, openedAt time.Time) *ledger.Ledger {
	t.Helper()

	catalog := market.NewCatalog(market.InstrumentMeta{
		LotSize:         100,
		LongMarginRate:  0.6,
		ShortMarginRate: 0.5,
	})
	l := ledger.New(model.Params{
		InstrumentA: a,
		InstrumentB: b,
		Beta:        1.5,
		ResidualStd: 1,
		Class:       model.Prime,
	}, ledger.SignalSettings{
		EntryZ: 1.2, ExitZ: 0.3, StopZ: 2.5,
		CooldownDaysWin: 5, CooldownDaysLoss: 15,
	}, catalog, nil, "run-1")

	l.OnCompletion(order.Open, order.ReasonNone, openedAt, []*order.Record{
		{Instrument: a, Units: 100, Status: order.StatusFilled, FillPrice: 50, FillTime: openedAt},
		{Instrument: b, Units: -150, Status: order.StatusFilled, FillPrice: 30, FillTime: openedAt},
	})
	return l
}

func TestMaxLossBoundaryInclusive(t *testing.T) {
	t.Parallel()

	r := NewMaxLoss(config.RuleConfig{Enabled: true, Priority: 100, Threshold: 0.10, CooldownDays: 30})

	fired, _ := r.Check(PortfolioSnapshot{InitialCapital: 1_000_000, Equity: 900_000})
	assert.True(t, fired, "loss exactly at threshold must trigger")

	fired, _ = r.Check(PortfolioSnapshot{InitialCapital: 1_000_000, Equity: 900_001})
	assert.False(t, fired)
}

func TestPortfolioDrawdownBoundaryInclusive(t *testing.T) {
	t.Parallel()

	r := NewPortfolioDrawdown(config.RuleConfig{Enabled: true, Priority: 90, Threshold: 0.15, CooldownDays: 30})

	fired, _ := r.Check(PortfolioSnapshot{Equity: 1_000_000})
	assert.False(t, fired)

	// Exactly 15% off the peak.
	fired, desc := r.Check(PortfolioSnapshot{Equity: 850_000})
	assert.True(t, fired)
	assert.Contains(t, desc, "drawdown")
}

func TestHoldingTimeout(t *testing.T) {
	t.Parallel()

	r := NewHoldingTimeout(config.RuleConfig{Enabled: true, Priority: 60, Threshold: 30, CooldownDays: 5})
	l := openLedger(t, "AAA", "BBB", rt0)

	pc := PairContext{Pair: l.Pair(), Ledger: l, Now: rt0.AddDate(0, 0, 29)}
	fired, _ := r.Check(pc)
	assert.False(t, fired)

	pc.Now = rt0.AddDate(0, 0, 30)
	fired, _ = r.Check(pc)
	assert.True(t, fired, "holding exactly the limit must trigger")
}

func TestHoldingTimeoutIgnoresFlatPair(t *testing.T) {
	t.Parallel()

	r := NewHoldingTimeout(config.RuleConfig{Enabled: true, Priority: 60, Threshold: 30, CooldownDays: 5})
	pc := PairContext{
		Pair: market.NewPairID("AAA", "BBB"),
		Ledger: ledger.New(model.Params{
			InstrumentA: "AAA", InstrumentB: "BBB", Beta: 1, ResidualStd: 1,
		}, ledger.SignalSettings{EntryZ: 1.2, ExitZ: 0.3, StopZ: 2.5, CooldownDaysWin: 5, CooldownDaysLoss: 15},
			market.NewCatalog(market.InstrumentMeta{}), nil, "run-1"),
		Now: rt0.AddDate(1, 0, 0),
	}
	fired, _ := r.Check(pc)
	assert.False(t, fired)
}

func TestPairDrawdownTracksPeaksPerPair(t *testing.T) {
	t.Parallel()

	r := NewPairDrawdown(config.RuleConfig{Enabled: true, Priority: 80, Threshold: 0.15, CooldownDays: 10})
	la := openLedger(t, "AAA", "BBB", rt0)
	lc := openLedger(t, "CCC", "DDD", rt0)

	// Pair A peaks at 1000, pair C stays flat at 100.
	fired, _ := r.Check(PairContext{Pair: la.Pair(), Ledger: la, UnrealizedPL: 1000, Now: rt0})
	assert.False(t, fired)
	fired, _ = r.Check(PairContext{Pair: lc.Pair(), Ledger: lc, UnrealizedPL: 100, Now: rt0})
	assert.False(t, fired)

	// A 20% fall off pair A's peak triggers only pair A.
	fired, _ = r.Check(PairContext{Pair: la.Pair(), Ledger: la, UnrealizedPL: 800, Now: rt0})
	assert.True(t, fired)
	fired, _ = r.Check(PairContext{Pair: lc.Pair(), Ledger: lc, UnrealizedPL: 95, Now: rt0})
	assert.False(t, fired)
}

func TestPairDrawdownResetPeak(t *testing.T) {
	t.Parallel()

	r := NewPairDrawdown(config.RuleConfig{Enabled: true, Priority: 80, Threshold: 0.15, CooldownDays: 10})
	l := openLedger(t, "AAA", "BBB", rt0)
	pc := PairContext{Pair: l.Pair(), Ledger: l, Now: rt0}

	pc.UnrealizedPL = 1000
	r.Check(pc)
	pc.UnrealizedPL = 800
	fired, _ := r.Check(pc)
	assert.True(t, fired)

	r.ResetPeak(l.Pair())
	fired, _ = r.Check(pc)
	assert.False(t, fired, "after peak reset the same level must not re-trigger")
}

func TestPositionAnomalyRule(t *testing.T) {
	t.Parallel()

	r := NewPositionAnomaly(config.RuleConfig{Enabled: true, Priority: 100, CooldownDays: 1})
	l := openLedger(t, "AAA", "BBB", rt0)

	fired, _ := r.Check(PairContext{Pair: l.Pair(), Ledger: l, Anomalous: false, Now: rt0})
	assert.False(t, fired)

	fired, desc := r.Check(PairContext{Pair: l.Pair(), Ledger: l, Anomalous: true, Now: rt0})
	assert.True(t, fired)
	assert.Contains(t, desc, "anomalous")
}

func TestGateORLogic(t *testing.T) {
	t.Parallel()

	g := NewGate(config.GateConfig{Enabled: true, MaxVolatility: 0.04, MaxFearIndex: 40})

	ok, _ := g.Allows(MarketConditions{Volatility: 0.01, FearIndex: 10})
	assert.True(t, ok)

	ok, why := g.Allows(MarketConditions{Volatility: 0.05, FearIndex: 10})
	assert.False(t, ok)
	assert.Contains(t, why, "volatility")

	ok, why = g.Allows(MarketConditions{Volatility: 0.01, FearIndex: 40})
	assert.False(t, ok, "fear index exactly at threshold closes the gate")
	assert.Contains(t, why, "fear")

	off := NewGate(config.GateConfig{Enabled: false})
	ok, _ = off.Allows(MarketConditions{Volatility: 10, FearIndex: 100})
	assert.True(t, ok)
}

func TestRuleClassCloseReasons(t *testing.T) {
	t.Parallel()

	assert.Equal(t, order.ReasonPortfolioRisk, ClassMaxLoss.CloseReason())
	assert.Equal(t, order.ReasonPortfolioRisk, ClassPortfolioDrawdown.CloseReason())
	assert.Equal(t, order.ReasonTimeout, ClassHoldingTimeout.CloseReason())
	assert.Equal(t, order.ReasonPairRisk, ClassPairDrawdown.CloseReason())
	assert.Equal(t, order.ReasonAnomaly, ClassPositionAnomaly.CloseReason())
}
