package repository

import (
	"context"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
)

// SignalRepository defines the interface for scored signals. Signals are
// immutable once created.
type SignalRepository interface {
	Create(ctx context.Context, signal *entity.Signal) error
	FindByID(ctx context.Context, id uint) (*entity.Signal, error)
}

type signalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new instance of SignalRepository.
func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

func (r *signalRepository) Create(ctx context.Context, signal *entity.Signal) error {
	return r.db.WithContext(ctx).Create(signal).Error
}

func (r *signalRepository) FindByID(ctx context.Context, id uint) (*entity.Signal, error) {
	var signal entity.Signal
	if err := r.db.WithContext(ctx).First(&signal, id).Error; err != nil {
		return nil, err
	}
	return &signal, nil
}
