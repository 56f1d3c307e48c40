package market

import (
	"errors"
	"sync"
	"time"
)

var ErrNoPrice = errors.New("price not found")

type TickSource interface {
	GetTick(instrument string) (Tick, error)
}

type Tick struct {
	Instrument string
	Bid        float64
	Ask        float64
	Time       time.Time
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Valid reports whether the tick carries usable prices. Zero or negative
// quotes come from halted or unlisted instruments and must be treated as
// missing data, not traded on.
func (t Tick) Valid() bool {
	return t.Bid > 0 && t.Ask > 0
}

type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks[t.Instrument] = t
}

func (ts *TickStore) GetTick(instr string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[instr]
	if !ok {
		return Tick{}, ErrNoPrice
	}
	return t, nil
}

// GetPair fetches both legs of a pair in canonical order. The boolean is
// false when either leg is missing or carries non-positive prices.
func (ts *TickStore) GetPair(p PairID) (Tick, Tick, bool) {
	a, b := p.Legs()
	return ts.GetLegs(a, b)
}

// GetLegs fetches ticks for two named instruments in the order given.
// Callers doing spread math must pass the model's leg order, which is not
// necessarily the canonical pair order.
func (ts *TickStore) GetLegs(a, b string) (Tick, Tick, bool) {
	ta, err := ts.GetTick(a)
	if err != nil || !ta.Valid() {
		return Tick{}, Tick{}, false
	}
	tb, err := ts.GetTick(b)
	if err != nil || !tb.Valid() {
		return Tick{}, Tick{}, false
	}
	return ta, tb, true
}
