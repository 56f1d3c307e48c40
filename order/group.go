package order

import (
	"fmt"
	"time"

	"github.com/rustyeddy/pairtrader/market"
)

// GroupStatus is the aggregate lifecycle state of one pair's current order
// batch, derived from the constituent order records.
type GroupStatus int

const (
	// GroupNone means no batch exists for the pair.
	GroupNone GroupStatus = iota
	GroupPending
	GroupCompleted
	GroupAnomaly
)

func (s GroupStatus) String() string {
	switch s {
	case GroupNone:
		return "none"
	case GroupPending:
		return "pending"
	case GroupCompleted:
		return "completed"
	case GroupAnomaly:
		return "anomaly"
	default:
		return fmt.Sprintf("group(%d)", int(s))
	}
}

// Group is the set of order records belonging to one pair's current batch.
// At most one group per pair is pending at any time; a new batch replaces the
// old one only after it resolves to completed or anomaly.
type Group struct {
	Pair      market.PairID
	Intent    Intent
	Orders    []*Record
	CreatedAt time.Time

	// completionSent guards the exactly-once ledger callback.
	completionSent bool
}

// Status derives the aggregate state: any terminal non-fill makes the batch
// anomalous, all fills complete it, anything else is still pending.
func (g *Group) Status() GroupStatus {
	if g == nil || len(g.Orders) == 0 {
		return GroupNone
	}
	anyFailed := false
	allFilled := true
	for _, rec := range g.Orders {
		switch rec.Status {
		case StatusCancelled, StatusInvalid:
			anyFailed = true
			allFilled = false
		case StatusFilled:
			// counts toward allFilled
		default:
			allFilled = false
		}
	}
	if anyFailed {
		return GroupAnomaly
	}
	if allFilled {
		return GroupCompleted
	}
	return GroupPending
}

// Filled returns the records that actually filled.
func (g *Group) Filled() []*Record {
	var out []*Record
	for _, rec := range g.Orders {
		if rec.Status == StatusFilled {
			out = append(out, rec)
		}
	}
	return out
}

// UnwindLegs computes the legs a recovery close must submit after the group
// went anomalous. For a failed open the surviving exposure is the filled
// legs, to be reversed; for a failed close the un-exited legs must be
// re-submitted as-is (their units already are the reversal of the position).
func (g *Group) UnwindLegs() []Leg {
	var out []Leg
	for _, rec := range g.Orders {
		switch g.Intent.Kind {
		case Open:
			if rec.Status == StatusFilled {
				out = append(out, Leg{Instrument: rec.Instrument, Units: -rec.Units})
			}
		case Close:
			if rec.Status == StatusCancelled || rec.Status == StatusInvalid {
				out = append(out, Leg{Instrument: rec.Instrument, Units: rec.Units})
			}
		}
	}
	return out
}
