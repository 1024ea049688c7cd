package entity

import (
	"time"

	"github.com/lib/pq"
)

// NewsEvent represents an ingested news item. The raw hash makes
// re-ingestion of the same item a detectable duplicate.
type NewsEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Source      string         `gorm:"not null" json:"source"`
	Tier        int            `gorm:"not null" json:"tier"`
	PublishedAt time.Time      `gorm:"not null" json:"published_at"`
	Title       string         `gorm:"not null" json:"title"`
	Body        string         `json:"body"`
	URL         string         `gorm:"unique" json:"url"`
	RawHash     string         `gorm:"unique;not null" json:"raw_hash"`
	Topics      pq.StringArray `gorm:"type:text[]" json:"topics"`
	IngestedAt  time.Time      `gorm:"autoCreateTime" json:"ingested_at"`
}

// TableName specifies the table name for the NewsEvent model.
func (NewsEvent) TableName() string {
	return "news_events"
}
