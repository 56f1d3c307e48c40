package order

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/pairtrader/market"
)

var log = logrus.WithField("module", "order")

// ErrLocked means the pair already has a pending batch in flight. Submitting
// while locked is a caller error; the tracker turns it into a no-op to keep
// the at-most-one-in-flight invariant.
var ErrLocked = errors.New("pair has a pending order group")

// CompletionHandler receives the exactly-once callback when a pair's batch
// completes. The owning position ledger implements this; it is the only path
// allowed to mutate tracked quantities.
type CompletionHandler interface {
	OnCompletion(kind Kind, reason CloseReason, fillTime time.Time, fills []*Record)
}

// Tracker owns every order record, maps them to their pairs, and derives the
// per-pair lifecycle state. It is driven synchronously from the tick loop:
// no locking, by the serialized-delivery contract.
type Tracker struct {
	groups   map[market.PairID]*Group
	byOrder  map[string]*Group
	handlers map[market.PairID]CompletionHandler
}

func NewTracker() *Tracker {
	return &Tracker{
		groups:   make(map[market.PairID]*Group),
		byOrder:  make(map[string]*Group),
		handlers: make(map[market.PairID]CompletionHandler),
	}
}

// SetHandler binds the completion callback for a pair. Must be set before the
// pair's first registration.
func (t *Tracker) SetHandler(pair market.PairID, h CompletionHandler) {
	t.handlers[pair] = h
}

// DropHandler removes a pair's callback once the pair is archived.
func (t *Tracker) DropHandler(pair market.PairID) {
	delete(t.handlers, pair)
}

// Locked reports whether the pair's current batch is still pending.
// Callers must check this before building a new intent for the pair.
func (t *Tracker) Locked(pair market.PairID) bool {
	return t.groups[pair].Status() == GroupPending
}

// Status returns the pair's aggregate lifecycle state.
func (t *Tracker) Status(pair market.PairID) GroupStatus {
	return t.groups[pair].Status()
}

// Register installs a new batch for the pair. The previous batch, if any,
// must have resolved; registering over a pending batch is rejected.
func (t *Tracker) Register(g *Group) error {
	if t.Locked(g.Pair) {
		log.WithFields(logrus.Fields{
			"pair": g.Pair,
		}).Warn("register rejected: pair locked by pending batch")
		return ErrLocked
	}

	// Replacing a resolved batch drops its records from the order index.
	if old := t.groups[g.Pair]; old != nil {
		for _, rec := range old.Orders {
			delete(t.byOrder, rec.ID)
		}
	}

	t.groups[g.Pair] = g
	for _, rec := range g.Orders {
		t.byOrder[rec.ID] = g
	}
	return nil
}

// Apply processes one broker status callback. Terminal records ignore further
// updates, so duplicate callbacks are harmless. When the update completes the
// batch, the owning ledger's completion callback fires exactly once; an
// anomalous batch never triggers completion and is instead surfaced through
// Anomalies for the risk layer to unwind.
func (t *Tracker) Apply(u OrderUpdate) {
	g, ok := t.byOrder[u.OrderID]
	if !ok {
		log.WithField("order_id", u.OrderID).Warn("update for unknown order")
		return
	}

	var rec *Record
	for _, r := range g.Orders {
		if r.ID == u.OrderID {
			rec = r
			break
		}
	}
	if rec == nil || rec.Status.Terminal() {
		return
	}

	rec.Status = u.Status
	if u.Status == StatusFilled {
		rec.FillPrice = u.FillPrice
		rec.FillTime = u.FillTime
	}

	switch g.Status() {
	case GroupCompleted:
		if g.completionSent {
			return
		}
		g.completionSent = true
		if h, ok := t.handlers[g.Pair]; ok {
			h.OnCompletion(g.Intent.Kind, g.Intent.Reason, u.FillTime, g.Filled())
		} else {
			log.WithField("pair", g.Pair).Error("completed batch has no handler")
		}
	case GroupAnomaly:
		log.WithFields(logrus.Fields{
			"pair":     g.Pair,
			"order_id": rec.ID,
			"status":   rec.Status.String(),
			"kind":     g.Intent.Kind.String(),
		}).Warn("order batch anomalous: leg failed terminally")
	}
}

// Anomalies lists the pairs whose current batch resolved anomalously. The
// position-anomaly risk rule consumes this to generate unwind intents.
func (t *Tracker) Anomalies() []market.PairID {
	var out []market.PairID
	for pair, g := range t.groups {
		if g.Status() == GroupAnomaly {
			out = append(out, pair)
		}
	}
	return out
}

// Resolve clears an anomalous batch with nothing left to unwind (every leg
// failed, so no exposure survived). Pending and completed batches are
// untouched.
func (t *Tracker) Resolve(pair market.PairID) bool {
	g := t.groups[pair]
	if g.Status() != GroupAnomaly {
		return false
	}
	for _, rec := range g.Orders {
		delete(t.byOrder, rec.ID)
	}
	delete(t.groups, pair)
	log.WithField("pair", pair).Info("anomalous batch resolved with no surviving exposure")
	return true
}

// Group returns the pair's current batch, or nil.
func (t *Tracker) Group(pair market.PairID) *Group {
	return t.groups[pair]
}

// Purge drops resolved batches created before the cutoff so a long run does
// not accumulate records without bound. Pending batches are never purged.
func (t *Tracker) Purge(olderThan time.Time) int {
	n := 0
	for pair, g := range t.groups {
		st := g.Status()
		if st == GroupPending || !g.CreatedAt.Before(olderThan) {
			continue
		}
		if st == GroupAnomaly {
			log.WithField("pair", pair).Warn("purging unresolved anomaly batch past retention")
		}
		for _, rec := range g.Orders {
			delete(t.byOrder, rec.ID)
		}
		delete(t.groups, pair)
		n++
	}
	return n
}
