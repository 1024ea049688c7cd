package repository

import (
	"context"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewsRepository defines the interface for interacting with ingested news.
type NewsRepository interface {
	CreateIfNew(ctx context.Context, news *entity.NewsEvent) (bool, error)
	FindByID(ctx context.Context, id uint) (*entity.NewsEvent, error)
}

type newsRepository struct {
	db *gorm.DB
}

// NewNewsRepository creates a new instance of NewsRepository.
func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

// CreateIfNew inserts the news event unless an item with the same raw hash
// already exists. Returns false for duplicates.
func (r *newsRepository) CreateIfNew(ctx context.Context, news *entity.NewsEvent) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "raw_hash"}},
		DoNothing: true,
	}).Create(news)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *newsRepository) FindByID(ctx context.Context, id uint) (*entity.NewsEvent, error) {
	var news entity.NewsEvent
	if err := r.db.WithContext(ctx).First(&news, id).Error; err != nil {
		return nil, err
	}
	return &news, nil
}
