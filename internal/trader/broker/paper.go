package broker

import (
	"context"
	"math/rand"
	"time"

	"golang-stock-trader/internal/entity"
)

const paperDefaultPrice = 100.0

// PaperBroker simulates a broker that fully fills market orders at the
// caller's expected price after a small latency.
type PaperBroker struct {
	baseLatency time.Duration
}

// NewPaperBroker creates a simulated broker.
func NewPaperBroker(baseLatency time.Duration) *PaperBroker {
	if baseLatency <= 0 {
		baseLatency = 100 * time.Millisecond
	}
	return &PaperBroker{baseLatency: baseLatency}
}

func (b *PaperBroker) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	latency := b.baseLatency + time.Duration(rand.Intn(80))*time.Millisecond
	select {
	case <-ctx.Done():
		return OrderResult{}, ctx.Err()
	case <-time.After(latency):
	}

	price := paperDefaultPrice
	if req.ExpectedPrice != nil {
		price = *req.ExpectedPrice
	}

	return OrderResult{
		Status:        entity.OrderFilled,
		BrokerOrderID: "paper-" + req.ClientOrderID,
		FilledQty:     req.Qty,
		AvgPrice:      price,
		ReasonCode:    "ORDER_ACCEPTED",
	}, nil
}

func (b *PaperBroker) HealthCheck(ctx context.Context) Health {
	return Health{
		Status: HealthOK,
		Checks: map[string]string{"broker": "paper"},
	}
}
