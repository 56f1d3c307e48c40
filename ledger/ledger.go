package ledger

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/pairtrader/journal"
	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/model"
	"github.com/rustyeddy/pairtrader/order"
)

var log = logrus.WithField("module", "ledger")

// TradeSink receives the snapshot of every closed trade. The journal
// implements this; tests use an in-memory fake.
type TradeSink interface {
	RecordTrade(journal.TradeRecord) error
}

// Ledger is the single source of truth for one pair's position. Tracked
// quantities and prices are mutated exclusively by OnCompletion, driven by
// the order tracker; the signal path never touches them.
type Ledger struct {
	pair    market.PairID
	params  model.Params
	cfg     SignalSettings
	catalog *market.Catalog
	sink    TradeSink
	runID   string

	qtyA, qtyB     float64
	entryA, entryB float64
	openedAt       time.Time
	reentryUntil   time.Time
}

// SignalSettings are the validated thresholds the ledger trades on.
type SignalSettings struct {
	EntryZ           float64
	ExitZ            float64
	StopZ            float64
	CooldownDaysWin  int
	CooldownDaysLoss int
}

func New(p model.Params, cfg SignalSettings, catalog *market.Catalog, sink TradeSink, runID string) *Ledger {
	return &Ledger{
		pair:    p.Pair(),
		params:  p,
		cfg:     cfg,
		catalog: catalog,
		sink:    sink,
		runID:   runID,
	}
}

func (l *Ledger) Pair() market.PairID  { return l.pair }
func (l *Ledger) Params() model.Params { return l.params }
func (l *Ledger) OpenedAt() time.Time  { return l.openedAt }

// Quantities returns the tracked signed share counts (leg A, leg B).
func (l *Ledger) Quantities() (float64, float64) { return l.qtyA, l.qtyB }

// CooldownUntil is the end of the post-close quiescent window.
func (l *Ledger) CooldownUntil() time.Time { return l.reentryUntil }

// SetParams applies a model refresh. Position state is untouched: the new
// parameters only change future signals and sizing.
func (l *Ledger) SetParams(p model.Params) { l.params = p }

// MarkLegacy flags the pair as dropped upstream while still holding a
// position. Legacy pairs are managed until closed, never re-entered.
func (l *Ledger) MarkLegacy() { l.params.Class = model.Legacy }

// Mode classifies the tracked position shape.
func (l *Ledger) Mode() PositionMode {
	a, b := l.qtyA, l.qtyB
	switch {
	case a == 0 && b == 0:
		return ModeNone
	case a != 0 && b == 0:
		return ModePartialA
	case a == 0 && b != 0:
		return ModePartialB
	case (a > 0) != (b > 0):
		if a > 0 {
			return ModeLongSpread
		}
		return ModeShortSpread
	default:
		return ModeSameDirection
	}
}

func (l *Ledger) HasPosition() bool { return l.Mode() != ModeNone }

// Zscore standardizes the observed spread against the modeled residual
// distribution: spread = priceA - (alpha + beta*priceB).
func (l *Ledger) Zscore(priceA, priceB float64) float64 {
	spread := priceA - (l.params.Alpha + l.params.Beta*priceB)
	return (spread - l.params.ResidualMean) / l.params.ResidualStd
}

// Signal evaluates the pair against the entry/exit/stop thresholds.
// Pure computation: no state is mutated here.
func (l *Ledger) Signal(ta, tb market.Tick, now time.Time) SignalKind {
	if !ta.Valid() || !tb.Valid() {
		return SignalNoData
	}
	z := l.Zscore(ta.Mid(), tb.Mid())

	switch l.Mode() {
	case ModeNone:
		if now.Before(l.reentryUntil) {
			return SignalCooldown
		}
		switch {
		case z >= l.cfg.EntryZ:
			// Spread rich: short leg A, long leg B.
			return SignalOpenShortSpread
		case z <= -l.cfg.EntryZ:
			return SignalOpenLongSpread
		default:
			return SignalWait
		}

	case ModeLongSpread:
		// Opened at z <= -entry; profits as z reverts upward.
		switch {
		case z <= -l.cfg.StopZ:
			return SignalStopLoss
		case z >= -l.cfg.ExitZ:
			return SignalClose
		default:
			return SignalHold
		}

	case ModeShortSpread:
		switch {
		case z >= l.cfg.StopZ:
			return SignalStopLoss
		case z <= l.cfg.ExitZ:
			return SignalClose
		default:
			return SignalHold
		}

	default:
		// Partial and same-direction shapes belong to the anomaly unwind
		// path; the ordinary signal never acts on them.
		return SignalHold
	}
}

// OpenIntent turns an open signal into a sized intent. Capital is split so
// that the margin spent on the two legs sums to the allocation while the leg
// notionals preserve the hedge ratio:
//
//	qa*pa*ra + qb*pb*rb = capital
//	qb*pb = |beta| * qa*pa
//
// which has the closed-form notionalA = capital / (ra + |beta|*rb). It is
// recomputed on every signal because prices and beta drift between refreshes.
// Returns nil when prices are missing, the signal is not an open, or either
// leg rounds to zero lots.
func (l *Ledger) OpenIntent(capital float64, ta, tb market.Tick, now time.Time) *order.Intent {
	sig := l.Signal(ta, tb, now)
	if !sig.IsOpen() || capital <= 0 {
		return nil
	}

	pa, pb := ta.Mid(), tb.Mid()
	metaA := l.catalog.Get(l.params.InstrumentA)
	metaB := l.catalog.Get(l.params.InstrumentB)

	// Long spread: long A, short B. Short spread: the reverse.
	dirA, dirB := 1.0, -1.0
	if sig == SignalOpenShortSpread {
		dirA, dirB = -1.0, 1.0
	}

	ra := metaA.MarginRate(dirA)
	rb := metaB.MarginRate(dirB)
	ratio := math.Abs(l.params.Beta)

	notionalA := capital / (ra + ratio*rb)
	qtyA := floorLot(notionalA/pa, metaA.LotSize)
	qtyB := floorLot(ratio*notionalA/pb, metaB.LotSize)

	if qtyA <= 0 || qtyB <= 0 {
		log.WithFields(logrus.Fields{
			"pair":    l.pair,
			"capital": capital,
		}).Debug("open skipped: allocation rounds below one lot")
		return nil
	}
	if qtyA < metaA.MinimumTrade || qtyB < metaB.MinimumTrade {
		return nil
	}

	return &order.Intent{
		Pair:        l.pair,
		InstrumentA: l.params.InstrumentA,
		InstrumentB: l.params.InstrumentB,
		UnitsA:      dirA * qtyA,
		UnitsB:      dirB * qtyB,
		Kind:        order.Open,
	}
}

// CloseIntent builds the exact reversal of the tracked position. Nil when
// there is nothing to close.
func (l *Ledger) CloseIntent(reason order.CloseReason) *order.Intent {
	if l.Mode() == ModeNone {
		return nil
	}
	return &order.Intent{
		Pair:        l.pair,
		InstrumentA: l.params.InstrumentA,
		InstrumentB: l.params.InstrumentB,
		UnitsA:      -l.qtyA,
		UnitsB:      -l.qtyB,
		Kind:        order.Close,
		Reason:      reason,
	}
}

// OnCompletion is the only mutator of tracked state, invoked exactly once by
// the tracker when a batch completes.
func (l *Ledger) OnCompletion(kind order.Kind, reason order.CloseReason, fillTime time.Time, fills []*order.Record) {
	switch kind {
	case order.Open:
		l.applyOpen(fillTime, fills)
	case order.Close:
		l.applyClose(reason, fillTime, fills)
	}
}

func (l *Ledger) applyOpen(fillTime time.Time, fills []*order.Record) {
	for _, rec := range fills {
		switch rec.Instrument {
		case l.params.InstrumentA:
			l.qtyA += rec.Units
			l.entryA = rec.FillPrice
		case l.params.InstrumentB:
			l.qtyB += rec.Units
			l.entryB = rec.FillPrice
		}
	}
	l.openedAt = fillTime

	log.WithFields(logrus.Fields{
		"pair":  l.pair,
		"qty_a": l.qtyA,
		"qty_b": l.qtyB,
		"mode":  l.Mode().String(),
	}).Info("position opened")
}

func (l *Ledger) applyClose(reason order.CloseReason, fillTime time.Time, fills []*order.Record) {
	if l.Mode() == ModeNone {
		// Unwind of an open that never completed: nothing was tracked, so
		// there is no trade to snapshot. The quiescent window still applies.
		l.reentryUntil = laterTime(l.reentryUntil, fillTime.AddDate(0, 0, l.cfg.CooldownDaysLoss))
		log.WithFields(logrus.Fields{
			"pair":   l.pair,
			"reason": reason.String(),
		}).Warn("anomalous batch unwound with no tracked position")
		return
	}

	// Legs absent from this batch's fills carry their entry price forward:
	// either they were flat already or they closed in an earlier anomalous
	// batch whose fills were deliberately never applied.
	exitA, exitB := l.entryA, l.entryB
	for _, rec := range fills {
		switch rec.Instrument {
		case l.params.InstrumentA:
			exitA = rec.FillPrice
		case l.params.InstrumentB:
			exitB = rec.FillPrice
		}
	}

	entryValue := l.qtyA*l.entryA + l.qtyB*l.entryB
	exitValue := l.qtyA*exitA + l.qtyB*exitB
	realized := exitValue - entryValue
	marginCost := l.entryMarginCost()

	holding := fillTime.Sub(l.openedAt).Hours() / 24

	rec := journal.TradeRecord{
		TradeID:     order.NewID(),
		RunID:       l.runID,
		Pair:        l.pair,
		InstrumentA: l.params.InstrumentA,
		InstrumentB: l.params.InstrumentB,
		UnitsA:      l.qtyA,
		UnitsB:      l.qtyB,
		EntryPriceA: l.entryA,
		EntryPriceB: l.entryB,
		ExitPriceA:  exitA,
		ExitPriceB:  exitB,
		OpenTime:    l.openedAt,
		CloseTime:   fillTime,
		HoldingDays: holding,
		RealizedPL:  realized,
		MarginCost:  marginCost,
		Reason:      reason,
	}
	if l.sink != nil {
		if err := l.sink.RecordTrade(rec); err != nil {
			log.WithError(err).WithField("pair", l.pair).Error("trade snapshot not recorded")
		}
	}

	days := l.cfg.CooldownDaysWin
	if realized < 0 {
		days = l.cfg.CooldownDaysLoss
	}
	l.reentryUntil = laterTime(l.reentryUntil, fillTime.AddDate(0, 0, days))

	log.WithFields(logrus.Fields{
		"pair":         l.pair,
		"reason":       reason.String(),
		"realized_pl":  realized,
		"holding_days": holding,
	}).Info("position closed")

	l.qtyA, l.qtyB = 0, 0
	l.entryA, l.entryB = 0, 0
	l.openedAt = time.Time{}
}

// UnrealizedPL marks the tracked position against current mid prices.
// Signed quantities make direction implicit.
func (l *Ledger) UnrealizedPL(ta, tb market.Tick) float64 {
	if !ta.Valid() || !tb.Valid() {
		return 0
	}
	return l.qtyA*(ta.Mid()-l.entryA) + l.qtyB*(tb.Mid()-l.entryB)
}

// MarginCost is the collateral currently tied up by the position at market
// prices.
func (l *Ledger) MarginCost(ta, tb market.Tick) float64 {
	if !ta.Valid() || !tb.Valid() {
		return 0
	}
	metaA := l.catalog.Get(l.params.InstrumentA)
	metaB := l.catalog.Get(l.params.InstrumentB)
	return math.Abs(l.qtyA)*ta.Mid()*metaA.MarginRate(l.qtyA) +
		math.Abs(l.qtyB)*tb.Mid()*metaB.MarginRate(l.qtyB)
}

func (l *Ledger) entryMarginCost() float64 {
	metaA := l.catalog.Get(l.params.InstrumentA)
	metaB := l.catalog.Get(l.params.InstrumentB)
	return math.Abs(l.qtyA)*l.entryA*metaA.MarginRate(l.qtyA) +
		math.Abs(l.qtyB)*l.entryB*metaB.MarginRate(l.qtyB)
}

func floorLot(units, lot float64) float64 {
	if lot <= 0 {
		return math.Floor(units)
	}
	return math.Floor(units/lot) * lot
}

func laterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
