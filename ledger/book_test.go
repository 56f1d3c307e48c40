package ledger

import (
	"testing"
	"time"

	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/model"
	"github.com/rustyeddy/pairtrader/order"
)

func newTestBook(t *testing.T) *Book {
	t.Helper()
	return NewBook(testSettings(), testCatalog(), &testSink{}, "run-1")
}

func pairParams(a, b string, beta, quality float64) model.Params {
	return model.Params{
		InstrumentA:  a,
		InstrumentB:  b,
		Beta:         beta,
		ResidualStd:  1,
		QualityScore: quality,
		Class:        model.Prime,
	}
}

func TestRefreshAddsAndUpdates(t *testing.T) {
	b := newTestBook(t)

	res := b.Refresh([]model.Params{
		pairParams("AAA", "BBB", 1.5, 0.8),
		pairParams("CCC", "DDD", 0.9, 0.6),
	}, nil)
	if res.Added != 2 || res.Updated != 0 {
		t.Fatalf("first refresh = %+v, want 2 added", res)
	}

	res = b.Refresh([]model.Params{
		pairParams("AAA", "BBB", 1.6, 0.9),
	}, nil)
	if res.Updated != 1 {
		t.Errorf("updated = %d, want 1", res.Updated)
	}
	if len(res.Dropped) != 1 {
		t.Fatalf("dropped = %v, want one pair", res.Dropped)
	}

	l, ok := b.Get(market.NewPairID("AAA", "BBB"))
	if !ok {
		t.Fatal("surviving pair missing")
	}
	if l.Params().Beta != 1.6 {
		t.Errorf("beta = %v, want refreshed 1.6", l.Params().Beta)
	}
}

func TestRefreshKeepsInUsePairAsLegacy(t *testing.T) {
	b := newTestBook(t)
	b.Refresh([]model.Params{pairParams("AAA", "BBB", 1.5, 0.8)}, nil)

	pair := market.NewPairID("AAA", "BBB")
	l, _ := b.Get(pair)
	l.OnCompletion(order.Open, order.ReasonNone, t0, []*order.Record{
		fill("AAA", 100, 50, t0),
		fill("BBB", -150, 30, t0),
	})

	res := b.Refresh(nil, func(p market.PairID) bool {
		lp, ok := b.Get(p)
		return ok && lp.HasPosition()
	})
	if res.Legacy != 1 || len(res.Dropped) != 0 {
		t.Fatalf("refresh = %+v, want 1 legacy, 0 dropped", res)
	}

	l, ok := b.Get(pair)
	if !ok {
		t.Fatal("legacy pair was dropped")
	}
	if l.Params().Class != model.Legacy {
		t.Errorf("class = %v, want legacy", l.Params().Class)
	}
}

func TestEntryCandidatesRankedByQuality(t *testing.T) {
	b := newTestBook(t)
	b.Refresh([]model.Params{
		pairParams("AAA", "BBB", 1.5, 0.5),
		pairParams("CCC", "DDD", 1.0, 0.9),
	}, nil)

	ticks := market.NewTickStore()
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	// Both pairs signal an open: z well beyond the entry threshold.
	ticks.Set(tick("AAA", 50, now))
	ticks.Set(tick("BBB", 30, now))
	ticks.Set(tick("CCC", 35, now))
	ticks.Set(tick("DDD", 30, now))

	cands := b.EntryCandidates(ticks, now)
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].Quality != 0.9 {
		t.Errorf("best candidate quality = %v, want 0.9", cands[0].Quality)
	}
	if cands[0].Pair != market.NewPairID("CCC", "DDD") {
		t.Errorf("best candidate = %v, want CCC/DDD", cands[0].Pair)
	}
}

func TestEntryCandidatesSkipLegacyAndOpen(t *testing.T) {
	b := newTestBook(t)
	b.Refresh([]model.Params{
		pairParams("AAA", "BBB", 1.5, 0.5),
		pairParams("CCC", "DDD", 1.0, 0.9),
	}, nil)

	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	la, _ := b.Get(market.NewPairID("AAA", "BBB"))
	la.OnCompletion(order.Open, order.ReasonNone, now, []*order.Record{
		fill("AAA", 100, 50, now),
		fill("BBB", -150, 30, now),
	})
	lc, _ := b.Get(market.NewPairID("CCC", "DDD"))
	lc.MarkLegacy()

	ticks := market.NewTickStore()
	ticks.Set(tick("AAA", 50, now))
	ticks.Set(tick("BBB", 30, now))
	ticks.Set(tick("CCC", 35, now))
	ticks.Set(tick("DDD", 30, now))

	if cands := b.EntryCandidates(ticks, now); len(cands) != 0 {
		t.Fatalf("candidates = %v, want none", cands)
	}
}

func TestEntryCandidatesSkipMissingPrices(t *testing.T) {
	b := newTestBook(t)
	b.Refresh([]model.Params{pairParams("AAA", "BBB", 1.5, 0.5)}, nil)

	ticks := market.NewTickStore()
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	ticks.Set(tick("AAA", 50, now))

	if cands := b.EntryCandidates(ticks, now); len(cands) != 0 {
		t.Fatalf("candidates = %v, want none without leg B price", cands)
	}
}
