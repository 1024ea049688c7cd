package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Parameter is a name-keyed tunable configuration value with provenance.
// Read-only to the trading core at execution time; changes take effect on
// the next read, not retroactively.
type Parameter struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"unique;not null" json:"name"`
	Value        datatypes.JSON `gorm:"column:value_json;type:jsonb;not null" json:"value"`
	Scope        string         `gorm:"not null" json:"scope"`
	TuneRequired bool           `gorm:"not null;default:true" json:"tune_required"`
	Rationale    string         `json:"rationale,omitempty"`
	EvidenceLink string         `json:"evidence_link,omitempty"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Parameter) TableName() string {
	return "parameter_registry"
}
