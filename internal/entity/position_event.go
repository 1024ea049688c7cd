package entity

import (
	"time"

	"gorm.io/datatypes"
)

// PositionEventType classifies what happened to a position.
type PositionEventType string

const (
	EventEntry       PositionEventType = "ENTRY"
	EventAdd         PositionEventType = "ADD"
	EventPartialExit PositionEventType = "PARTIAL_EXIT"
	EventFullExit    PositionEventType = "FULL_EXIT"
	EventBlock       PositionEventType = "BLOCK"
)

// PositionEventAction records the outcome of the attempted event.
type PositionEventAction string

const (
	ActionExecuted PositionEventAction = "EXECUTED"
	ActionSkipped  PositionEventAction = "SKIPPED"
	ActionBlocked  PositionEventAction = "BLOCKED"
)

// PositionEvent is an append-only audit record of every decision taken on a
// position (executed, skipped, or blocked). The idempotency key, when
// present, is globally unique: a retry presenting the same key must resolve
// to this row instead of creating a duplicate.
type PositionEvent struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	PositionID     *uint               `gorm:"index" json:"position_id,omitempty"`
	EventTime      time.Time           `gorm:"autoCreateTime" json:"event_time"`
	EventType      PositionEventType   `gorm:"not null" json:"event_type"`
	Action         PositionEventAction `gorm:"not null" json:"action"`
	ReasonCode     string              `gorm:"not null" json:"reason_code"`
	Detail         datatypes.JSON      `gorm:"type:jsonb;not null" json:"detail"`
	IdempotencyKey *string             `gorm:"unique" json:"idempotency_key,omitempty"`
}

func (PositionEvent) TableName() string {
	return "position_events"
}
