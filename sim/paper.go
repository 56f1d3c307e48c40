// Package sim is the paper broker: it fills market orders against the
// current tick store and reports fills asynchronously through an update
// callback, the same contract a live broker adapter would honor.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/pairtrader/broker"
	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/order"
)

var log = logrus.WithField("module", "sim")

type position struct {
	units    float64
	avgPrice float64
}

// Paper simulates the broker side of the boundary. Orders fill at the stored
// bid/ask; instruments on the reject list are cancelled instead, which is
// how tests and replays exercise the anomaly path.
type Paper struct {
	mu        sync.Mutex
	acct      broker.Account
	ticks     *market.TickStore
	catalog   *market.Catalog
	notify    func(order.OrderUpdate)
	reject    map[string]bool
	positions map[string]*position
}

func NewPaper(acct broker.Account, ticks *market.TickStore, catalog *market.Catalog, notify func(order.OrderUpdate)) *Paper {
	return &Paper{
		acct:      acct,
		ticks:     ticks,
		catalog:   catalog,
		notify:    notify,
		reject:    make(map[string]bool),
		positions: make(map[string]*position),
	}
}

// Notify installs the update callback after construction, which breaks the
// broker/coordinator construction cycle.
func (p *Paper) Notify(fn func(order.OrderUpdate)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = fn
}

// Reject marks an instrument so its next submissions cancel instead of fill.
func (p *Paper) Reject(instrument string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reject[instrument] = on
}

func (p *Paper) GetAccount(ctx context.Context) (broker.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct := p.acct
	acct.Equity = acct.Balance
	acct.MarginUsed = 0
	for instr, pos := range p.positions {
		if pos.units == 0 {
			continue
		}
		tick, err := p.ticks.GetTick(instr)
		if err != nil || !tick.Valid() {
			continue
		}
		mid := tick.Mid()
		acct.Equity += pos.units * (mid - pos.avgPrice)
		meta := p.catalog.Get(instr)
		acct.MarginUsed += math.Abs(pos.units) * mid * meta.MarginRate(pos.units)
	}
	acct.FreeMargin = acct.Equity - acct.MarginUsed
	return acct, nil
}

func (p *Paper) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	if req.Units == 0 {
		return broker.OrderAck{}, fmt.Errorf("submit %s: zero units", req.Instrument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tick, err := p.ticks.GetTick(req.Instrument)
	if err != nil || !tick.Valid() {
		return broker.OrderAck{}, fmt.Errorf("submit %s: no price", req.Instrument)
	}

	now := tick.Time
	if now.IsZero() {
		now = time.Now()
	}
	ack := broker.OrderAck{OrderID: req.ClientID, SubmitTime: now}

	if p.reject[req.Instrument] {
		log.WithFields(logrus.Fields{
			"instrument": req.Instrument,
			"order_id":   req.ClientID,
		}).Warn("order cancelled by reject list")
		p.push(order.OrderUpdate{
			OrderID:  req.ClientID,
			Status:   order.StatusCancelled,
			FillTime: now,
		})
		return ack, nil
	}

	// Buys lift the ask, sells hit the bid.
	fillPrice := tick.Ask
	if req.Units < 0 {
		fillPrice = tick.Bid
	}

	p.applyFill(req.Instrument, req.Units, fillPrice)
	p.push(order.OrderUpdate{
		OrderID:   req.ClientID,
		Status:    order.StatusFilled,
		FillPrice: fillPrice,
		FillTime:  now,
	})
	return ack, nil
}

func (p *Paper) applyFill(instrument string, units, price float64) {
	pos, ok := p.positions[instrument]
	if !ok {
		pos = &position{}
		p.positions[instrument] = pos
	}

	switch {
	case pos.units == 0 || (pos.units > 0) == (units > 0):
		// Opening or adding: blend the average entry price.
		total := pos.units + units
		pos.avgPrice = (pos.avgPrice*math.Abs(pos.units) + price*math.Abs(units)) / math.Abs(total)
		pos.units = total
	default:
		// Reducing or flipping: realize P&L on the covered amount.
		covered := math.Min(math.Abs(units), math.Abs(pos.units))
		sign := 1.0
		if pos.units < 0 {
			sign = -1.0
		}
		p.acct.Balance += sign * covered * (price - pos.avgPrice)
		pos.units += units
		if pos.units == 0 {
			pos.avgPrice = 0
		} else if (pos.units > 0) != (sign > 0) {
			// Flipped through zero: remainder entered at this fill.
			pos.avgPrice = price
		}
	}
}

func (p *Paper) push(u order.OrderUpdate) {
	if p.notify != nil {
		p.notify(u)
	}
}
