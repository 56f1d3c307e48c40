// Package engine runs the per-tick decision sequence: drain fills, evaluate
// portfolio risk, evaluate pair risk, process ordinary closes, then gated
// opens. Everything here executes on one logical thread; the fill queue is
// the only concurrency boundary.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/pairtrader/broker"
	"github.com/rustyeddy/pairtrader/capital"
	"github.com/rustyeddy/pairtrader/config"
	"github.com/rustyeddy/pairtrader/journal"
	"github.com/rustyeddy/pairtrader/ledger"
	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/model"
	"github.com/rustyeddy/pairtrader/order"
	"github.com/rustyeddy/pairtrader/risk"
)

var log = logrus.WithField("module", "engine")

// Coordinator wires the collaborators together and owns the tick sequence.
// It keeps no position or order state of its own: the book and the tracker
// are the sources of truth, the coordinator only sequences them.
type Coordinator struct {
	cfg     *config.Config
	broker  broker.Broker
	ticks   *market.TickStore
	book    *ledger.Book
	tracker *order.Tracker
	gateway *order.Gateway
	rules   *risk.Engine
	gate    *risk.Gate
	alloc   *capital.Allocator
	jnl     journal.Journal
	queue   *FillQueue
	runID   string
}

func New(cfg *config.Config, b broker.Broker, ticks *market.TickStore, catalog *market.Catalog, jnl journal.Journal, runID string) *Coordinator {
	sig := ledger.SignalSettings{
		EntryZ:           cfg.Signals.EntryZ,
		ExitZ:            cfg.Signals.ExitZ,
		StopZ:            cfg.Signals.StopZ,
		CooldownDaysWin:  cfg.Signals.CooldownDaysWin,
		CooldownDaysLoss: cfg.Signals.CooldownDaysLoss,
	}

	c := &Coordinator{
		cfg:     cfg,
		broker:  b,
		ticks:   ticks,
		book:    ledger.NewBook(sig, catalog, jnl, runID),
		tracker: order.NewTracker(),
		gateway: order.NewGateway(b),
		rules:   risk.NewEngine(),
		gate:    risk.NewGate(cfg.Gate),
		alloc:   capital.NewAllocator(cfg.Account.InitialCapital, cfg.Capital),
		jnl:     jnl,
		queue:   NewFillQueue(cfg.Tracker.FillQueueSize),
		runID:   runID,
	}

	c.rules.RegisterPortfolio(risk.NewMaxLoss(cfg.Rules.MaxLoss))
	c.rules.RegisterPortfolio(risk.NewPortfolioDrawdown(cfg.Rules.PortfolioDrawdown))
	c.rules.RegisterPair(risk.NewPositionAnomaly(cfg.Rules.PositionAnomaly))
	c.rules.RegisterPair(risk.NewPairDrawdown(cfg.Rules.PairDrawdown))
	c.rules.RegisterPair(risk.NewHoldingTimeout(cfg.Rules.HoldingTimeout))

	return c
}

// Queue is the fill-event inbox; broker adapters push into it.
func (c *Coordinator) Queue() *FillQueue { return c.queue }

func (c *Coordinator) Book() *ledger.Book      { return c.book }
func (c *Coordinator) Tracker() *order.Tracker { return c.tracker }
func (c *Coordinator) Rules() *risk.Engine     { return c.rules }
func (c *Coordinator) RunID() string           { return c.runID }

// Refresh applies a model-parameter cycle. Pairs holding a position, locked
// by an in-flight batch, or carrying an unresolved anomaly are retained as
// legacy even when the feed drops them; completion handlers follow the
// ledger set.
func (c *Coordinator) Refresh(params []model.Params) ledger.RefreshResult {
	inUse := func(p market.PairID) bool {
		if c.tracker.Locked(p) || c.tracker.Status(p) == order.GroupAnomaly {
			return true
		}
		l, ok := c.book.Get(p)
		return ok && l.HasPosition()
	}

	res := c.book.Refresh(params, inUse)
	for _, pair := range c.book.Pairs() {
		l, _ := c.book.Get(pair)
		c.tracker.SetHandler(pair, l)
	}
	for _, pair := range res.Dropped {
		c.tracker.DropHandler(pair)
	}
	return res
}

// Tick runs one full decision pass. Risk outranks strategy: a portfolio
// trigger liquidates and ends the tick, pair triggers outrank ordinary
// signals per pair, and opens only happen when nothing above objected and
// the market gate is open.
func (c *Coordinator) Tick(ctx context.Context, now time.Time, mc risk.MarketConditions) error {
	for _, u := range c.queue.Drain() {
		c.tracker.Apply(u)
	}
	c.tracker.Purge(now.AddDate(0, 0, -c.cfg.Tracker.RetentionDays))

	snap, err := c.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("tick: account snapshot: %w", err)
	}
	defer c.recordEquity(ctx, now)

	if c.rules.Frozen(now) {
		c.unwindOrphans(ctx, now)
		return nil
	}

	if trig := c.rules.EvalPortfolio(snap, now); trig != nil {
		c.forceCloseAll(ctx, trig, now)
		return nil
	}

	closed := make(map[market.PairID]bool)
	c.applyPairRisk(ctx, now, closed)
	c.applySignalCloses(ctx, now, closed)
	c.applyOpens(ctx, now, snap, mc, closed)
	return nil
}

// Drain applies queued fill events outside the tick cycle, used after a
// final CloseAll so the run ends with settled ledgers.
func (c *Coordinator) Drain() {
	for _, u := range c.queue.Drain() {
		c.tracker.Apply(u)
	}
}

// CloseAll reverses every open, unlocked pair, for end-of-run settlement.
// Returns the number of close batches submitted.
func (c *Coordinator) CloseAll(ctx context.Context, now time.Time, reason order.CloseReason) int {
	submitted := 0
	for _, pair := range c.book.OpenPairs() {
		if c.tracker.Locked(pair) {
			continue
		}
		l, _ := c.book.Get(pair)
		in := l.CloseIntent(reason)
		if in == nil {
			continue
		}
		if c.submit(ctx, *in, now) {
			submitted++
		}
	}
	return submitted
}

// forceCloseAll liquidates every open, unlocked pair for a portfolio-scope
// trigger. The cooldown activates only when at least one close actually went
// out, so a trigger whose intents all fail keeps firing next tick.
func (c *Coordinator) forceCloseAll(ctx context.Context, trig *risk.PortfolioTrigger, now time.Time) {
	reason := trig.Rule.Class().CloseReason()
	submitted := 0
	for _, pair := range c.book.OpenPairs() {
		if c.tracker.Locked(pair) {
			log.WithField("pair", pair).Warn("forced close deferred: pair locked by pending batch")
			continue
		}
		l, _ := c.book.Get(pair)
		in := l.CloseIntent(reason)
		if in == nil {
			continue
		}
		if c.submit(ctx, *in, now) {
			submitted++
		}
	}
	if submitted > 0 {
		c.rules.ActivateCooldown(trig.Rule, now)
	}
}

// unwindOrphans is the only activity allowed under a global freeze: pairs
// that were locked during the forced liquidation, or whose batches resolved
// anomalously since, still get closed out.
func (c *Coordinator) unwindOrphans(ctx context.Context, now time.Time) {
	for _, pair := range c.pairUniverse() {
		if c.tracker.Locked(pair) {
			continue
		}
		l, ok := c.book.Get(pair)
		if !ok {
			c.tracker.Resolve(pair)
			continue
		}
		var in *order.Intent
		if c.tracker.Status(pair) == order.GroupAnomaly {
			in = c.unwindIntent(pair, l)
		} else {
			in = l.CloseIntent(order.ReasonPortfolioRisk)
		}
		if in == nil {
			continue
		}
		log.WithField("pair", pair).Warn("closing orphan position under global freeze")
		c.submit(ctx, *in, now)
	}
}

// applyPairRisk evaluates the pair-scope rules for every open or anomalous
// pair. An anomaly trigger unwinds only the broken batch's surviving legs;
// every other trigger reverses the whole tracked position.
func (c *Coordinator) applyPairRisk(ctx context.Context, now time.Time, closed map[market.PairID]bool) {
	for _, pair := range c.pairUniverse() {
		if closed[pair] || c.tracker.Locked(pair) {
			continue
		}
		l, ok := c.book.Get(pair)
		if !ok {
			log.WithField("pair", pair).Warn("anomalous batch for untracked pair")
			c.tracker.Resolve(pair)
			continue
		}

		pc := risk.PairContext{
			Pair:         pair,
			Ledger:       l,
			UnrealizedPL: c.unrealized(l),
			Anomalous:    c.tracker.Status(pair) == order.GroupAnomaly,
			Now:          now,
		}
		trig := c.rules.EvalPair(pc, now)
		if trig == nil {
			continue
		}

		var in *order.Intent
		if trig.Rule.Class() == risk.ClassPositionAnomaly {
			in = c.unwindIntent(pair, l)
		} else {
			in = l.CloseIntent(trig.Rule.Class().CloseReason())
		}
		if in == nil {
			continue
		}
		if c.submit(ctx, *in, now) {
			c.rules.ActivatePairCooldown(trig.Rule, pair, now)
			closed[pair] = true
		}
	}
}

// applySignalCloses handles the ordinary strategy exits for pairs the risk
// layer left alone.
func (c *Coordinator) applySignalCloses(ctx context.Context, now time.Time, closed map[market.PairID]bool) {
	for _, pair := range c.book.OpenPairs() {
		if closed[pair] || c.tracker.Locked(pair) {
			continue
		}
		l, _ := c.book.Get(pair)
		ta, tb, ok := c.ticks.GetLegs(l.Params().InstrumentA, l.Params().InstrumentB)
		if !ok {
			continue
		}
		sig := l.Signal(ta, tb, now)
		if !sig.IsClose() {
			continue
		}
		reason := order.ReasonNormal
		if sig == ledger.SignalStopLoss {
			reason = order.ReasonStopLoss
		}
		if in := l.CloseIntent(reason); in != nil && c.submit(ctx, *in, now) {
			closed[pair] = true
		}
	}
}

// applyOpens runs the entry pipeline: market gate, ranked candidates,
// capital allocation, sized intents.
func (c *Coordinator) applyOpens(ctx context.Context, now time.Time, snap risk.PortfolioSnapshot, mc risk.MarketConditions, closed map[market.PairID]bool) {
	if ok, why := c.gate.Allows(mc); !ok {
		log.WithField("reason", why).Info("entry gate closed, no new positions")
		return
	}

	byPair := make(map[market.PairID]*ledger.Ledger)
	var ranked []capital.Candidate
	for _, ec := range c.book.EntryCandidates(c.ticks, now) {
		if closed[ec.Pair] || c.tracker.Locked(ec.Pair) {
			continue
		}
		ranked = append(ranked, capital.Candidate{Pair: ec.Pair, Quality: ec.Quality})
		byPair[ec.Pair] = ec.Ledger
	}

	for _, al := range c.alloc.Allocate(ranked, snap.FreeMargin) {
		l := byPair[al.Pair]
		ta, tb, ok := c.ticks.GetLegs(l.Params().InstrumentA, l.Params().InstrumentB)
		if !ok {
			continue
		}
		in := l.OpenIntent(al.Amount, ta, tb, now)
		if in == nil {
			continue
		}
		c.submit(ctx, *in, now)
	}
}

// unwindIntent builds the recovery close for an anomalous batch. An anomaly
// where no leg survived is resolved in place; anything without a live batch
// falls back to a full reversal.
func (c *Coordinator) unwindIntent(pair market.PairID, l *ledger.Ledger) *order.Intent {
	g := c.tracker.Group(pair)
	if g == nil || g.Status() != order.GroupAnomaly {
		return l.CloseIntent(order.ReasonAnomaly)
	}
	legs := g.UnwindLegs()
	if len(legs) == 0 {
		c.tracker.Resolve(pair)
		return nil
	}

	in := &order.Intent{
		Pair:        pair,
		InstrumentA: l.Params().InstrumentA,
		InstrumentB: l.Params().InstrumentB,
		Kind:        order.Close,
		Reason:      order.ReasonAnomaly,
	}
	for _, leg := range legs {
		switch leg.Instrument {
		case in.InstrumentA:
			in.UnitsA = leg.Units
		case in.InstrumentB:
			in.UnitsB = leg.Units
		}
	}
	if in.UnitsA == 0 && in.UnitsB == 0 {
		return nil
	}
	return in
}

// submit sends an intent through the gateway and registers the resulting
// batch. Submission failures are logged, never fatal to the tick.
func (c *Coordinator) submit(ctx context.Context, in order.Intent, now time.Time) bool {
	grp, err := c.gateway.Submit(ctx, in, now)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"pair": in.Pair,
			"kind": in.Kind.String(),
		}).Error("intent submission failed")
		return false
	}
	if err := c.tracker.Register(grp); err != nil {
		log.WithError(err).WithField("pair", in.Pair).Error("batch registration rejected after submission")
		return false
	}
	return true
}

// pairUniverse is every pair that needs risk attention this tick: open
// positions plus anomalous batches, deterministic order.
func (c *Coordinator) pairUniverse() []market.PairID {
	seen := make(map[market.PairID]bool)
	var out []market.PairID
	for _, p := range c.book.OpenPairs() {
		seen[p] = true
		out = append(out, p)
	}
	for _, p := range c.tracker.Anomalies() {
		if !seen[p] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Coordinator) unrealized(l *ledger.Ledger) float64 {
	ta, tb, ok := c.ticks.GetLegs(l.Params().InstrumentA, l.Params().InstrumentB)
	if !ok {
		return 0
	}
	return l.UnrealizedPL(ta, tb)
}

func (c *Coordinator) snapshot(ctx context.Context) (risk.PortfolioSnapshot, error) {
	acct, err := c.broker.GetAccount(ctx)
	if err != nil {
		return risk.PortfolioSnapshot{}, err
	}
	return risk.PortfolioSnapshot{
		Balance:        acct.Balance,
		Equity:         acct.Equity,
		InitialCapital: c.cfg.Account.InitialCapital,
		MarginUsed:     acct.MarginUsed,
		FreeMargin:     acct.FreeMargin,
		OpenPairs:      len(c.book.OpenPairs()),
	}, nil
}

// recordEquity re-reads the account at tick end so the curve point reflects
// fills applied during this tick.
func (c *Coordinator) recordEquity(ctx context.Context, now time.Time) {
	if c.jnl == nil {
		return
	}
	acct, err := c.broker.GetAccount(ctx)
	if err != nil {
		log.WithError(err).Warn("equity snapshot skipped: account unavailable")
		return
	}
	snap := journal.EquitySnapshot{
		Time:       now,
		RunID:      c.runID,
		Balance:    acct.Balance,
		Equity:     acct.Equity,
		MarginUsed: acct.MarginUsed,
		FreeMargin: acct.FreeMargin,
		OpenPairs:  len(c.book.OpenPairs()),
	}
	if err := c.jnl.RecordEquity(snap); err != nil {
		log.WithError(err).Error("equity snapshot not recorded")
	}
}
