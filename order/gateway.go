package order

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/pairtrader/broker"
)

// Gateway is the stateless translator from an Intent to broker submissions.
// It holds no order state; the resulting group is handed to the Tracker.
type Gateway struct {
	broker broker.Broker
}

func NewGateway(b broker.Broker) *Gateway {
	return &Gateway{broker: b}
}

// Submit sends one broker order per intent leg and returns the resulting
// batch. A leg whose submission is rejected synchronously is recorded as
// invalid, which makes the batch anomalous and routes it to the unwind path.
// An error is returned only when no leg went out at all.
func (g *Gateway) Submit(ctx context.Context, in Intent, now time.Time) (*Group, error) {
	legs := in.Legs()
	if len(legs) == 0 {
		return nil, fmt.Errorf("submit %s: intent has no legs", in.Pair)
	}

	kind := KindEntry
	if in.Kind == Close {
		kind = KindExit
	}

	grp := &Group{
		Pair:      in.Pair,
		Intent:    in,
		CreatedAt: now,
	}

	submitted := 0
	for _, leg := range legs {
		rec := &Record{
			ID:         NewID(),
			Pair:       in.Pair,
			Instrument: leg.Instrument,
			Units:      leg.Units,
			SubmitTime: now,
			Kind:       kind,
			Status:     StatusSubmitted,
			Tag:        in.Tag(),
		}

		_, err := g.broker.SubmitMarketOrder(ctx, broker.OrderRequest{
			ClientID:   rec.ID,
			Instrument: leg.Instrument,
			Units:      leg.Units,
			Tag:        rec.Tag,
		})
		if err != nil {
			rec.Status = StatusInvalid
			log.WithFields(logrus.Fields{
				"pair":       in.Pair,
				"instrument": leg.Instrument,
				"units":      leg.Units,
			}).WithError(err).Error("leg submission rejected")
		} else {
			submitted++
		}
		grp.Orders = append(grp.Orders, rec)
	}

	if submitted == 0 {
		return nil, fmt.Errorf("submit %s: all legs rejected", in.Pair)
	}
	return grp, nil
}
