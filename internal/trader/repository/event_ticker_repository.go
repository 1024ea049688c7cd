package repository

import (
	"context"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
)

// EventTickerRepository defines the interface for news-to-ticker mappings.
type EventTickerRepository interface {
	Create(ctx context.Context, eventTicker *entity.EventTicker) error
	FindByID(ctx context.Context, id uint) (*entity.EventTicker, error)
}

type eventTickerRepository struct {
	db *gorm.DB
}

// NewEventTickerRepository creates a new instance of EventTickerRepository.
func NewEventTickerRepository(db *gorm.DB) EventTickerRepository {
	return &eventTickerRepository{db: db}
}

func (r *eventTickerRepository) Create(ctx context.Context, eventTicker *entity.EventTicker) error {
	return r.db.WithContext(ctx).Create(eventTicker).Error
}

func (r *eventTickerRepository) FindByID(ctx context.Context, id uint) (*entity.EventTicker, error) {
	var eventTicker entity.EventTicker
	if err := r.db.WithContext(ctx).First(&eventTicker, id).Error; err != nil {
		return nil, err
	}
	return &eventTicker, nil
}
