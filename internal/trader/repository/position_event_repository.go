package repository

import (
	"context"
	"errors"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
)

// ErrDuplicateIdempotencyKey is returned when an event insert collides with
// an already-recorded idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// PositionEventRepository defines the interface for the append-only
// position event log.
type PositionEventRepository interface {
	WithTx(tx *gorm.DB) PositionEventRepository
	Create(ctx context.Context, event *entity.PositionEvent) error
	FindByIdempotencyKey(ctx context.Context, key string) (*entity.PositionEvent, error)
	ListByPosition(ctx context.Context, positionID uint) ([]entity.PositionEvent, error)
}

type positionEventRepository struct {
	db *gorm.DB
}

// NewPositionEventRepository creates a new instance of PositionEventRepository.
func NewPositionEventRepository(db *gorm.DB) PositionEventRepository {
	return &positionEventRepository{db: db}
}

func (r *positionEventRepository) WithTx(tx *gorm.DB) PositionEventRepository {
	if tx == nil {
		return r
	}
	return &positionEventRepository{db: tx}
}

// Create appends an event. A unique-constraint violation on the idempotency
// key maps to ErrDuplicateIdempotencyKey so callers can resolve to the
// winner's row.
func (r *positionEventRepository) Create(ctx context.Context, event *entity.PositionEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateIdempotencyKey
	}
	return err
}

func (r *positionEventRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entity.PositionEvent, error) {
	var event entity.PositionEvent
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *positionEventRepository) ListByPosition(ctx context.Context, positionID uint) ([]entity.PositionEvent, error) {
	var events []entity.PositionEvent
	if err := r.db.WithContext(ctx).Where("position_id = ?", positionID).Order("id").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
