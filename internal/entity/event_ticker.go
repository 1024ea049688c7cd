package entity

import "time"

// EventTicker links a news event to the ticker it is about, with the
// confidence of the mapping method that produced it.
type EventTicker struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	NewsID         uint      `gorm:"not null;index" json:"news_id"`
	Ticker         string    `gorm:"not null" json:"ticker"`
	CompanyName    string    `json:"company_name"`
	MapConfidence  float64   `gorm:"not null" json:"map_confidence"`
	MappingMethod  string    `gorm:"not null" json:"mapping_method"`
	ContextSnippet string    `json:"context_snippet"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (EventTicker) TableName() string {
	return "event_tickers"
}
