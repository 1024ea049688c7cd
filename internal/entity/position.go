package entity

import "time"

// PositionStatus is the position lifecycle state.
type PositionStatus string

const (
	PositionPendingEntry PositionStatus = "PENDING_ENTRY"
	PositionOpen         PositionStatus = "OPEN"
	PositionPartialExit  PositionStatus = "PARTIAL_EXIT"
	PositionClosed       PositionStatus = "CLOSED"
	PositionCancelled    PositionStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s PositionStatus) Terminal() bool {
	return s == PositionClosed || s == PositionCancelled
}

// Position is an open or historical holding. Positions are never deleted;
// closed positions are retained for audit.
type Position struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Ticker         string         `gorm:"not null;index" json:"ticker"`
	SignalID       *uint          `gorm:"index" json:"signal_id,omitempty"`
	Status         PositionStatus `gorm:"not null" json:"status"`
	Qty            float64        `gorm:"not null;default:0" json:"qty"`
	AvgEntryPrice  float64        `json:"avg_entry_price"`
	OpenedValue    float64        `json:"opened_value"`
	Leverage       float64        `gorm:"not null;default:1" json:"leverage"`
	OpenedAt       time.Time      `gorm:"autoCreateTime" json:"opened_at"`
	ClosedAt       *time.Time     `json:"closed_at,omitempty"`
	ExitReasonCode string         `json:"exit_reason_code,omitempty"`
}

func (Position) TableName() string {
	return "positions"
}
