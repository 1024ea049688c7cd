package broker

import (
	"context"
	"errors"

	"golang-stock-trader/internal/entity"
)

// ErrBrokerUnavailable marks a transient send failure; the dispatcher may
// retry within its attempt budget.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// HealthStatus is the broker health tier.
type HealthStatus string

const (
	HealthOK       HealthStatus = "OK"
	HealthWarn     HealthStatus = "WARN"
	HealthCritical HealthStatus = "CRITICAL"
)

// OrderRequest describes one order to send to the broker.
type OrderRequest struct {
	SignalID      uint
	Ticker        string
	Side          entity.OrderSide
	Qty           float64
	OrderType     entity.OrderType
	ExpectedPrice *float64
	ClientOrderID string
}

// OrderResult is the broker's answer to a submitted order.
type OrderResult struct {
	Status        entity.OrderStatus
	BrokerOrderID string
	FilledQty     float64
	AvgPrice      float64
	ReasonCode    string
}

// Health is the result of a broker health check.
type Health struct {
	Status     HealthStatus
	ReasonCode string
	Checks     map[string]string
}

// Broker is the abstract order-routing capability. Implementations must be
// safe for concurrent use; SubmitOrder may block on network I/O.
type Broker interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	HealthCheck(ctx context.Context) Health
}
