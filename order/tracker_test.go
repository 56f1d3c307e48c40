package order

import (
	"testing"
	"time"

	"github.com/rustyeddy/pairtrader/market"
)

type completionCall struct {
	kind   Kind
	reason CloseReason
	fills  []*Record
}

type testHandler struct {
	calls []completionCall
}

func (h *testHandler) OnCompletion(kind Kind, reason CloseReason, fillTime time.Time, fills []*Record) {
	h.calls = append(h.calls, completionCall{kind: kind, reason: reason, fills: fills})
}

var (
	testPair = market.NewPairID("AAA", "BBB")
	tr0      = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
)

func newGroup(kind Kind, legs ...*Record) *Group {
	return &Group{
		Pair:      testPair,
		Intent:    Intent{Pair: testPair, InstrumentA: "AAA", InstrumentB: "BBB", Kind: kind},
		Orders:    legs,
		CreatedAt: tr0,
	}
}

func rec(id, instr string, units float64) *Record {
	return &Record{
		ID:         id,
		Pair:       testPair,
		Instrument: instr,
		Units:      units,
		SubmitTime: tr0,
		Status:     StatusSubmitted,
	}
}

func TestRegisterRejectedWhilePending(t *testing.T) {
	tr := NewTracker()
	tr.SetHandler(testPair, &testHandler{})

	if err := tr.Register(newGroup(Open, rec("o1", "AAA", 100), rec("o2", "BBB", -150))); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if !tr.Locked(testPair) {
		t.Fatal("pair should be locked while batch pending")
	}

	err := tr.Register(newGroup(Close, rec("o3", "AAA", -100)))
	if err != ErrLocked {
		t.Fatalf("register while locked = %v, want ErrLocked", err)
	}

	// The pending batch is untouched by the rejected registration.
	if g := tr.Group(testPair); g.Orders[0].ID != "o1" {
		t.Fatal("pending batch was replaced")
	}
}

func TestCompletionFiresExactlyOnce(t *testing.T) {
	tr := NewTracker()
	h := &testHandler{}
	tr.SetHandler(testPair, h)
	tr.Register(newGroup(Open, rec("o1", "AAA", 100), rec("o2", "BBB", -150)))

	tr.Apply(OrderUpdate{OrderID: "o1", Status: StatusFilled, FillPrice: 50, FillTime: tr0})
	if len(h.calls) != 0 {
		t.Fatal("completion fired before all legs terminal")
	}
	if !tr.Locked(testPair) {
		t.Fatal("pair should stay locked with one leg open")
	}

	tr.Apply(OrderUpdate{OrderID: "o2", Status: StatusFilled, FillPrice: 30, FillTime: tr0})
	if len(h.calls) != 1 {
		t.Fatalf("completions = %d, want 1", len(h.calls))
	}
	if tr.Locked(testPair) {
		t.Fatal("pair should unlock after completion")
	}

	// Duplicate callback for a terminal record is a no-op.
	tr.Apply(OrderUpdate{OrderID: "o2", Status: StatusFilled, FillPrice: 31, FillTime: tr0})
	if len(h.calls) != 1 {
		t.Fatalf("completions after duplicate = %d, want 1", len(h.calls))
	}
	if g := tr.Group(testPair); g.Orders[1].FillPrice != 30 {
		t.Errorf("terminal fill price mutated to %v", g.Orders[1].FillPrice)
	}

	call := h.calls[0]
	if call.kind != Open || len(call.fills) != 2 {
		t.Errorf("completion call = %+v", call)
	}
}

func TestAnomalyWhenLegFails(t *testing.T) {
	tr := NewTracker()
	h := &testHandler{}
	tr.SetHandler(testPair, h)
	tr.Register(newGroup(Open, rec("o1", "AAA", 100), rec("o2", "BBB", -150)))

	tr.Apply(OrderUpdate{OrderID: "o1", Status: StatusFilled, FillPrice: 50, FillTime: tr0})
	tr.Apply(OrderUpdate{OrderID: "o2", Status: StatusCancelled, FillTime: tr0})

	if len(h.calls) != 0 {
		t.Fatal("anomalous batch must not fire completion")
	}
	if tr.Status(testPair) != GroupAnomaly {
		t.Fatalf("status = %v, want anomaly", tr.Status(testPair))
	}
	if tr.Locked(testPair) {
		t.Fatal("anomalous batch must not keep the pair locked")
	}

	anoms := tr.Anomalies()
	if len(anoms) != 1 || anoms[0] != testPair {
		t.Fatalf("anomalies = %v, want [%v]", anoms, testPair)
	}
}

func TestUnwindLegsForFailedOpen(t *testing.T) {
	g := newGroup(Open, rec("o1", "AAA", 100), rec("o2", "BBB", -150))
	g.Orders[0].Status = StatusFilled
	g.Orders[0].FillPrice = 50
	g.Orders[1].Status = StatusCancelled

	legs := g.UnwindLegs()
	if len(legs) != 1 {
		t.Fatalf("unwind legs = %v, want one", legs)
	}
	// Surviving exposure is reversed.
	if legs[0].Instrument != "AAA" || legs[0].Units != -100 {
		t.Errorf("unwind leg = %+v, want AAA -100", legs[0])
	}
}

func TestUnwindLegsForFailedClose(t *testing.T) {
	g := newGroup(Close, rec("o1", "AAA", -100), rec("o2", "BBB", 150))
	g.Orders[0].Status = StatusFilled
	g.Orders[1].Status = StatusInvalid

	legs := g.UnwindLegs()
	if len(legs) != 1 {
		t.Fatalf("unwind legs = %v, want one", legs)
	}
	// The un-exited leg is resubmitted as-is.
	if legs[0].Instrument != "BBB" || legs[0].Units != 150 {
		t.Errorf("unwind leg = %+v, want BBB 150", legs[0])
	}
}

func TestResolveClearsAllFailedAnomaly(t *testing.T) {
	tr := NewTracker()
	tr.SetHandler(testPair, &testHandler{})
	tr.Register(newGroup(Open, rec("o1", "AAA", 100), rec("o2", "BBB", -150)))

	tr.Apply(OrderUpdate{OrderID: "o1", Status: StatusCancelled, FillTime: tr0})
	tr.Apply(OrderUpdate{OrderID: "o2", Status: StatusCancelled, FillTime: tr0})

	if len(tr.Group(testPair).UnwindLegs()) != 0 {
		t.Fatal("all-failed open should have nothing to unwind")
	}
	if !tr.Resolve(testPair) {
		t.Fatal("resolve should clear the anomalous batch")
	}
	if tr.Status(testPair) != GroupNone {
		t.Fatalf("status after resolve = %v, want none", tr.Status(testPair))
	}
	if tr.Resolve(testPair) {
		t.Fatal("second resolve should be a no-op")
	}
}

func TestUpdateForUnknownOrderIgnored(t *testing.T) {
	tr := NewTracker()
	tr.Apply(OrderUpdate{OrderID: "ghost", Status: StatusFilled})
	// Nothing to assert beyond not panicking and no state appearing.
	if tr.Status(testPair) != GroupNone {
		t.Fatal("unexpected state from unknown order")
	}
}

func TestPurgeKeepsPendingBatches(t *testing.T) {
	tr := NewTracker()
	h := &testHandler{}
	tr.SetHandler(testPair, h)

	otherPair := market.NewPairID("CCC", "DDD")
	tr.SetHandler(otherPair, &testHandler{})

	tr.Register(newGroup(Open, rec("o1", "AAA", 100), rec("o2", "BBB", -150)))
	tr.Apply(OrderUpdate{OrderID: "o1", Status: StatusFilled, FillTime: tr0})
	tr.Apply(OrderUpdate{OrderID: "o2", Status: StatusFilled, FillTime: tr0})

	pending := &Group{
		Pair:      otherPair,
		Intent:    Intent{Pair: otherPair, Kind: Open},
		Orders:    []*Record{{ID: "o3", Pair: otherPair, Instrument: "CCC", Units: 100, Status: StatusSubmitted}},
		CreatedAt: tr0,
	}
	tr.Register(pending)

	n := tr.Purge(tr0.AddDate(0, 0, 1))
	if n != 1 {
		t.Fatalf("purged = %d, want 1", n)
	}
	if tr.Status(testPair) != GroupNone {
		t.Error("resolved batch should be purged")
	}
	if tr.Status(otherPair) != GroupPending {
		t.Error("pending batch must never be purged")
	}
}
