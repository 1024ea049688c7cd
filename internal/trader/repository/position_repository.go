package repository

import (
	"context"
	"fmt"
	"strings"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/dto"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PositionRepository defines the interface for position rows. Status
// transitions go through UpdateTransition so the previous state is part of
// the WHERE clause and a lost race surfaces as zero affected rows.
type PositionRepository interface {
	WithTx(tx *gorm.DB) PositionRepository
	Create(ctx context.Context, position *entity.Position) error
	FindByID(ctx context.Context, id uint) (*entity.Position, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*entity.Position, error)
	FindOpenByTicker(ctx context.Context, ticker string) ([]entity.Position, error)
	FindOpenOlderThan(ctx context.Context, days int) ([]entity.Position, error)
	Get(ctx context.Context, param dto.GetPositionsParam) ([]entity.Position, error)
	UpdateTransition(ctx context.Context, id uint, from []entity.PositionStatus, updates map[string]interface{}) (int64, error)
}

type positionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new instance of PositionRepository.
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) WithTx(tx *gorm.DB) PositionRepository {
	if tx == nil {
		return r
	}
	return &positionRepository{db: tx}
}

func (r *positionRepository) Create(ctx context.Context, position *entity.Position) error {
	return r.db.WithContext(ctx).Create(position).Error
}

func (r *positionRepository) FindByID(ctx context.Context, id uint) (*entity.Position, error) {
	var position entity.Position
	if err := r.db.WithContext(ctx).First(&position, id).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

// FindByIDForUpdate loads the position under a row lock. Must be called
// inside a transaction.
func (r *positionRepository) FindByIDForUpdate(ctx context.Context, id uint) (*entity.Position, error) {
	var position entity.Position
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&position, id).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

func (r *positionRepository) FindOpenByTicker(ctx context.Context, ticker string) ([]entity.Position, error) {
	var positions []entity.Position
	err := r.db.WithContext(ctx).
		Where("ticker = ? AND status IN ?", ticker, []entity.PositionStatus{entity.PositionOpen, entity.PositionPendingEntry}).
		Order("id").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepository) FindOpenOlderThan(ctx context.Context, days int) ([]entity.Position, error) {
	var positions []entity.Position
	err := r.db.WithContext(ctx).
		Where("status = ? AND opened_at < NOW() - ? * INTERVAL '1 day'", entity.PositionOpen, days).
		Order("id").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepository) Get(ctx context.Context, param dto.GetPositionsParam) ([]entity.Position, error) {
	var positions []entity.Position

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.IDs) > 0 {
		qFilter = append(qFilter, "id IN ?")
		qFilterParam = append(qFilterParam, param.IDs)
	}

	if param.Ticker != "" {
		qFilter = append(qFilter, "ticker = ?")
		qFilterParam = append(qFilterParam, param.Ticker)
	}

	if len(param.Statuses) > 0 {
		qFilter = append(qFilter, "status IN ?")
		qFilterParam = append(qFilterParam, param.Statuses)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	if err := r.db.WithContext(ctx).Where(strings.Join(qFilter, " AND "), qFilterParam...).Order("id DESC").Find(&positions).Error; err != nil {
		return nil, err
	}

	return positions, nil
}

// UpdateTransition applies updates only when the position is still in one of
// the expected source states. Returns the number of affected rows.
func (r *positionRepository) UpdateTransition(ctx context.Context, id uint, from []entity.PositionStatus, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Position{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}
