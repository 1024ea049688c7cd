package entity

import "time"

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType is the broker order type.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// OrderStatus is the broker-facing order lifecycle state.
type OrderStatus string

const (
	OrderNew           OrderStatus = "NEW"
	OrderSent          OrderStatus = "SENT"
	OrderPartialFilled OrderStatus = "PARTIAL_FILLED"
	OrderFilled        OrderStatus = "FILLED"
	OrderCancelled     OrderStatus = "CANCELLED"
	OrderRejected      OrderStatus = "REJECTED"
	OrderExpired       OrderStatus = "EXPIRED"
)

// Terminal reports whether the order can no longer change state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderExpired:
		return true
	}
	return false
}

// Order is one broker-facing request tied to a position and the signal that
// triggered it. AttemptNo is bounded by the retry-policy parameter.
// IdempotencyKey ties the order to the logical intent that submitted it so a
// redelivered message can find the order its first delivery created.
type Order struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	PositionID     *uint       `gorm:"index" json:"position_id,omitempty"`
	SignalID       *uint       `gorm:"index" json:"signal_id,omitempty"`
	IdempotencyKey *string     `gorm:"index" json:"idempotency_key,omitempty"`
	Ticker         string      `gorm:"not null" json:"ticker"`
	Side           OrderSide   `gorm:"not null" json:"side"`
	Qty            float64     `gorm:"not null" json:"qty"`
	OrderType      OrderType   `gorm:"not null" json:"order_type"`
	Price          *float64    `json:"price,omitempty"`
	Status         OrderStatus `gorm:"not null" json:"status"`
	BrokerOrderID  string      `gorm:"index" json:"broker_order_id,omitempty"`
	AttemptNo      int         `gorm:"not null;default:1" json:"attempt_no"`
	SentAt         *time.Time  `json:"sent_at,omitempty"`
	FilledAt       *time.Time  `json:"filled_at,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderFill is one fill notification for an order. The unique
// (broker_order_id, fill_seq) pair makes duplicate notifications a no-op.
type OrderFill struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OrderID       uint      `gorm:"not null;index" json:"order_id"`
	BrokerOrderID string    `gorm:"not null;uniqueIndex:idx_order_fills_broker_seq" json:"broker_order_id"`
	FillSeq       int       `gorm:"not null;uniqueIndex:idx_order_fills_broker_seq" json:"fill_seq"`
	Qty           float64   `gorm:"not null" json:"qty"`
	Price         float64   `gorm:"not null" json:"price"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (OrderFill) TableName() string {
	return "order_fills"
}
