package broker

import (
	"context"
	"time"
)

// Broker is the order-submission boundary. Submission is acknowledged
// synchronously; fills and rejections arrive later as OrderUpdate events
// delivered through the coordinator's fill queue.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
}

type Account struct {
	ID         string
	Currency   string
	Balance    float64
	Equity     float64
	MarginUsed float64
	FreeMargin float64
}

// OrderRequest is one leg of a submission. ClientID is assigned by the caller
// so fills can be routed back without a broker round trip; Tag carries
// pair/action/reason for downstream traceability.
type OrderRequest struct {
	ClientID   string
	Instrument string
	Units      float64
	Tag        string
}

type OrderAck struct {
	OrderID    string
	SubmitTime time.Time
}
