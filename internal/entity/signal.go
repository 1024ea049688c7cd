package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Decision is the trading recommendation attached to a signal.
type Decision string

const (
	DecisionBuy    Decision = "BUY"
	DecisionHold   Decision = "HOLD"
	DecisionIgnore Decision = "IGNORE"
	DecisionBlock  Decision = "BLOCK"
)

// PricedInTier estimates how much of a signal's information is already
// reflected in the price.
type PricedInTier string

const (
	PricedInLow    PricedInTier = "LOW"
	PricedInMedium PricedInTier = "MEDIUM"
	PricedInHigh   PricedInTier = "HIGH"
)

// Signal is a scored, decision-tagged recommendation derived from a news
// event and its ticker mapping. Immutable once created.
type Signal struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	NewsID        uint           `gorm:"not null;index" json:"news_id"`
	EventTickerID uint           `gorm:"not null" json:"event_ticker_id"`
	Ticker        string         `gorm:"not null;index" json:"ticker"`
	RawScore      float64        `gorm:"not null" json:"raw_score"`
	TotalScore    float64        `gorm:"not null" json:"total_score"`
	Components    datatypes.JSON `gorm:"type:jsonb;not null" json:"components"`
	PricedInFlag  PricedInTier   `gorm:"not null" json:"priced_in_flag"`
	Decision      Decision       `gorm:"not null" json:"decision"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Signal) TableName() string {
	return "signal_scores"
}
