package repository

import (
	"context"
	"errors"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository defines the interface for broker-facing order rows.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *entity.Order) error
	Save(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uint) (*entity.Order, error)
	FindByBrokerOrderID(ctx context.Context, brokerOrderID string) (*entity.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*entity.Order, error)
	FindBySignal(ctx context.Context, signalID uint, side entity.OrderSide) ([]entity.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &orderRepository{db: tx}
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) Save(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*entity.Order, error) {
	var order entity.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByBrokerOrderID(ctx context.Context, brokerOrderID string) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).Where("broker_order_id = ?", brokerOrderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// FindByIdempotencyKey returns the most recent order submitted under the
// given key, or nil when the key has never been used.
func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).Order("id DESC").First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindBySignal(ctx context.Context, signalID uint, side entity.OrderSide) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.db.WithContext(ctx).
		Where("signal_id = ? AND side = ?", signalID, side).
		Order("id").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// OrderFillRepository defines the interface for fill notifications. The
// unique (broker_order_id, fill_seq) pair deduplicates replays.
type OrderFillRepository interface {
	WithTx(tx *gorm.DB) OrderFillRepository
	CreateIfNew(ctx context.Context, fill *entity.OrderFill) (bool, error)
	ListByOrder(ctx context.Context, orderID uint) ([]entity.OrderFill, error)
}

type orderFillRepository struct {
	db *gorm.DB
}

// NewOrderFillRepository creates a new instance of OrderFillRepository.
func NewOrderFillRepository(db *gorm.DB) OrderFillRepository {
	return &orderFillRepository{db: db}
}

func (r *orderFillRepository) WithTx(tx *gorm.DB) OrderFillRepository {
	if tx == nil {
		return r
	}
	return &orderFillRepository{db: tx}
}

func (r *orderFillRepository) CreateIfNew(ctx context.Context, fill *entity.OrderFill) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "broker_order_id"}, {Name: "fill_seq"}},
		DoNothing: true,
	}).Create(fill)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *orderFillRepository) ListByOrder(ctx context.Context, orderID uint) ([]entity.OrderFill, error) {
	var fills []entity.OrderFill
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("fill_seq").Find(&fills).Error; err != nil {
		return nil, err
	}
	return fills, nil
}
