package repository

import (
	"context"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RiskStateRepository defines the interface for per-trading-day risk state.
type RiskStateRepository interface {
	WithTx(tx *gorm.DB) RiskStateRepository
	GetOrCreate(ctx context.Context, tradeDate string) (*entity.RiskState, error)
	GetForUpdate(ctx context.Context, tradeDate string) (*entity.RiskState, error)
	Get(ctx context.Context, tradeDate string) (*entity.RiskState, error)
	Save(ctx context.Context, state *entity.RiskState) error
}

type riskStateRepository struct {
	db *gorm.DB
}

// NewRiskStateRepository creates a new instance of RiskStateRepository.
func NewRiskStateRepository(db *gorm.DB) RiskStateRepository {
	return &riskStateRepository{db: db}
}

func (r *riskStateRepository) WithTx(tx *gorm.DB) RiskStateRepository {
	if tx == nil {
		return r
	}
	return &riskStateRepository{db: tx}
}

// GetOrCreate lazily creates the day's state with zero defaults and trading
// enabled. Insert races resolve through the primary key; the existing row
// wins.
func (r *riskStateRepository) GetOrCreate(ctx context.Context, tradeDate string) (*entity.RiskState, error) {
	state := entity.RiskState{
		TradeDate:      tradeDate,
		TradingEnabled: true,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_date"}},
		DoNothing: true,
	}).Create(&state).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, tradeDate)
}

// GetForUpdate loads the day's state under a row lock. Must be called inside
// a transaction; concurrent outcome recordings for the same date serialize
// here.
func (r *riskStateRepository) GetForUpdate(ctx context.Context, tradeDate string) (*entity.RiskState, error) {
	var state entity.RiskState
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trade_date = ?", tradeDate).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *riskStateRepository) Get(ctx context.Context, tradeDate string) (*entity.RiskState, error) {
	var state entity.RiskState
	if err := r.db.WithContext(ctx).Where("trade_date = ?", tradeDate).First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *riskStateRepository) Save(ctx context.Context, state *entity.RiskState) error {
	return r.db.WithContext(ctx).Save(state).Error
}
