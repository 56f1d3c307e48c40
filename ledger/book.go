package ledger

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/model"
)

// Book owns one ledger per tracked pair and applies model-refresh cycles.
// Pairs that vanish from the feed while holding a position (or while an
// order batch is in flight) are kept and flagged legacy; flat vanished pairs
// are archived.
type Book struct {
	cfg     SignalSettings
	catalog *market.Catalog
	sink    TradeSink
	runID   string
	ledgers map[market.PairID]*Ledger
}

func NewBook(cfg SignalSettings, catalog *market.Catalog, sink TradeSink, runID string) *Book {
	return &Book{
		cfg:     cfg,
		catalog: catalog,
		sink:    sink,
		runID:   runID,
		ledgers: make(map[market.PairID]*Ledger),
	}
}

func (b *Book) Get(pair market.PairID) (*Ledger, bool) {
	l, ok := b.ledgers[pair]
	return l, ok
}

// Pairs returns every tracked pair in deterministic order.
func (b *Book) Pairs() []market.PairID {
	out := make([]market.PairID, 0, len(b.ledgers))
	for p := range b.ledgers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OpenPairs returns the pairs currently holding a position, deterministic
// order.
func (b *Book) OpenPairs() []market.PairID {
	var out []market.PairID
	for _, p := range b.Pairs() {
		if b.ledgers[p].HasPosition() {
			out = append(out, p)
		}
	}
	return out
}

// RefreshResult summarizes one model-refresh cycle.
type RefreshResult struct {
	Added   int
	Updated int
	Legacy  int
	Dropped []market.PairID
}

// Refresh applies a new parameter feed. inUse reports whether a pair must be
// retained even though it vanished from the feed (open position or in-flight
// batch); such pairs are marked legacy.
func (b *Book) Refresh(params []model.Params, inUse func(market.PairID) bool) RefreshResult {
	var res RefreshResult

	seen := make(map[market.PairID]bool, len(params))
	for _, p := range params {
		pair := p.Pair()
		seen[pair] = true
		if l, ok := b.ledgers[pair]; ok {
			l.SetParams(p)
			res.Updated++
		} else {
			b.ledgers[pair] = New(p, b.cfg, b.catalog, b.sink, b.runID)
			res.Added++
		}
	}

	for _, pair := range b.Pairs() {
		if seen[pair] {
			continue
		}
		l := b.ledgers[pair]
		if inUse != nil && inUse(pair) {
			if l.Params().Class != model.Legacy {
				l.MarkLegacy()
				res.Legacy++
				log.WithField("pair", pair).Warn("pair dropped upstream while in use, managing as legacy")
			}
			continue
		}
		delete(b.ledgers, pair)
		res.Dropped = append(res.Dropped, pair)
	}

	if res.Added > 0 || res.Legacy > 0 || len(res.Dropped) > 0 {
		log.WithFields(logrus.Fields{
			"added":   res.Added,
			"updated": res.Updated,
			"legacy":  res.Legacy,
			"dropped": len(res.Dropped),
		}).Info("pair universe refreshed")
	}
	return res
}

// EntryCandidate is a flat pair currently signaling an open.
type EntryCandidate struct {
	Pair    market.PairID
	Ledger  *Ledger
	Quality float64
}

// EntryCandidates scans flat prime pairs for open signals and returns them
// ranked by quality score, best first. Watch and legacy pairs are never
// entered. Ties keep pair order so ranking is deterministic.
func (b *Book) EntryCandidates(ticks *market.TickStore, now time.Time) []EntryCandidate {
	var out []EntryCandidate
	for _, pair := range b.Pairs() {
		l := b.ledgers[pair]
		if l.HasPosition() || l.Params().Class != model.Prime {
			continue
		}
		ta, tb, ok := ticks.GetLegs(l.Params().InstrumentA, l.Params().InstrumentB)
		if !ok {
			continue
		}
		if l.Signal(ta, tb, now).IsOpen() {
			out = append(out, EntryCandidate{Pair: pair, Ledger: l, Quality: l.Params().QualityScore})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quality > out[j].Quality })
	return out
}
