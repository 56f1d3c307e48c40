package order

import (
	"fmt"
	"time"

	"github.com/rustyeddy/pairtrader/market"
)

// Status tracks one broker order through its life.
type Status int

const (
	StatusSubmitted Status = iota
	StatusFilled
	StatusCancelled
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the order can no longer change state.
func (s Status) Terminal() bool {
	return s != StatusSubmitted
}

// OrderKind distinguishes position-entering from position-exiting orders.
type OrderKind int

const (
	KindEntry OrderKind = iota
	KindExit
)

func (k OrderKind) String() string {
	if k == KindExit {
		return "exit"
	}
	return "entry"
}

// Record is the tracker's view of one submitted broker order. Created at
// submission, updated on every broker callback, and kept for as long as the
// owning group is referenced.
type Record struct {
	ID         string
	Pair       market.PairID
	Instrument string
	Units      float64
	SubmitTime time.Time
	Kind       OrderKind
	Status     Status
	FillPrice  float64
	FillTime   time.Time
	Tag        string
}

// OrderUpdate is one broker status callback, delivered through the
// coordinator's fill queue and applied by the tracker.
type OrderUpdate struct {
	OrderID   string
	Status    Status
	FillPrice float64
	FillTime  time.Time
}
