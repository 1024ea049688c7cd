package entity

import "time"

// RiskState is the per-trading-day aggregate used by the risk gate.
// Natural key is the trade date. Once DailyLossLimitHit is set for a date it
// never reverts within that date.
type RiskState struct {
	TradeDate          string     `gorm:"primaryKey" json:"trade_date"`
	DailyRealizedPnl   float64    `gorm:"not null;default:0" json:"daily_realized_pnl"`
	DailyUnrealizedPnl float64    `gorm:"not null;default:0" json:"daily_unrealized_pnl"`
	DailyLossLimitHit  bool       `gorm:"not null;default:false" json:"daily_loss_limit_hit"`
	ConsecutiveLosses  int        `gorm:"not null;default:0" json:"consecutive_losses"`
	CooldownUntil      *time.Time `json:"cooldown_until,omitempty"`
	TradingEnabled     bool       `gorm:"not null;default:true" json:"trading_enabled"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RiskState) TableName() string {
	return "risk_state"
}
