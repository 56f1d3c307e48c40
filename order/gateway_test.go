package order

import (
	"context"
	"errors"
	"testing"

	"github.com/rustyeddy/pairtrader/broker"
)

type fakeBroker struct {
	rejects map[string]bool
	reqs    []broker.OrderRequest
}

func (f *fakeBroker) GetAccount(ctx context.Context) (broker.Account, error) {
	return broker.Account{}, nil
}

func (f *fakeBroker) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	f.reqs = append(f.reqs, req)
	if f.rejects[req.Instrument] {
		return broker.OrderAck{}, errors.New("instrument halted")
	}
	return broker.OrderAck{OrderID: req.ClientID, SubmitTime: tr0}, nil
}

func TestSubmitCreatesOneRecordPerLeg(t *testing.T) {
	fb := &fakeBroker{}
	gw := NewGateway(fb)

	in := Intent{
		Pair:        testPair,
		InstrumentA: "AAA",
		InstrumentB: "BBB",
		UnitsA:      -1400,
		UnitsB:      3500,
		Kind:        Open,
	}
	grp, err := gw.Submit(context.Background(), in, tr0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(grp.Orders) != 2 || len(fb.reqs) != 2 {
		t.Fatalf("orders = %d, requests = %d, want 2 each", len(grp.Orders), len(fb.reqs))
	}
	if grp.Status() != GroupPending {
		t.Fatalf("status = %v, want pending", grp.Status())
	}
	for i, rec := range grp.Orders {
		if rec.ID == "" {
			t.Errorf("leg %d has empty ID", i)
		}
		if rec.ID != fb.reqs[i].ClientID {
			t.Errorf("leg %d: record ID %q != client ID %q", i, rec.ID, fb.reqs[i].ClientID)
		}
		if rec.Tag != in.Tag() {
			t.Errorf("leg %d: tag %q, want %q", i, rec.Tag, in.Tag())
		}
	}
}

func TestSubmitMarksRejectedLegInvalid(t *testing.T) {
	fb := &fakeBroker{rejects: map[string]bool{"BBB": true}}
	gw := NewGateway(fb)

	in := Intent{
		Pair:        testPair,
		InstrumentA: "AAA",
		InstrumentB: "BBB",
		UnitsA:      100,
		UnitsB:      -150,
		Kind:        Open,
	}
	grp, err := gw.Submit(context.Background(), in, tr0)
	if err != nil {
		t.Fatalf("submit with one rejection: %v", err)
	}

	if grp.Orders[0].Status != StatusSubmitted {
		t.Errorf("leg A status = %v, want submitted", grp.Orders[0].Status)
	}
	if grp.Orders[1].Status != StatusInvalid {
		t.Errorf("leg B status = %v, want invalid", grp.Orders[1].Status)
	}
	// One leg already failed terminally: the batch is anomalous on arrival.
	if grp.Status() != GroupAnomaly {
		t.Fatalf("status = %v, want anomaly", grp.Status())
	}
}

func TestSubmitFailsWhenAllLegsRejected(t *testing.T) {
	fb := &fakeBroker{rejects: map[string]bool{"AAA": true, "BBB": true}}
	gw := NewGateway(fb)

	in := Intent{
		Pair:        testPair,
		InstrumentA: "AAA",
		InstrumentB: "BBB",
		UnitsA:      100,
		UnitsB:      -150,
		Kind:        Open,
	}
	if _, err := gw.Submit(context.Background(), in, tr0); err == nil {
		t.Fatal("expected error when every leg is rejected")
	}
}

func TestSubmitRejectsEmptyIntent(t *testing.T) {
	gw := NewGateway(&fakeBroker{})
	in := Intent{Pair: testPair, InstrumentA: "AAA", InstrumentB: "BBB", Kind: Close}
	if _, err := gw.Submit(context.Background(), in, tr0); err == nil {
		t.Fatal("expected error for intent with no legs")
	}
}

func TestSingleLegUnwindIntent(t *testing.T) {
	fb := &fakeBroker{}
	gw := NewGateway(fb)

	in := Intent{
		Pair:        testPair,
		InstrumentA: "AAA",
		InstrumentB: "BBB",
		UnitsA:      -100,
		Kind:        Close,
		Reason:      ReasonAnomaly,
	}
	grp, err := gw.Submit(context.Background(), in, tr0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(grp.Orders) != 1 {
		t.Fatalf("orders = %d, want single unwind leg", len(grp.Orders))
	}
	if grp.Orders[0].Kind != KindExit {
		t.Errorf("kind = %v, want exit", grp.Orders[0].Kind)
	}
}
