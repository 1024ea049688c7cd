package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-stock-trader/internal/entity"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrParameterNotFound is returned when the requested parameter name is
// unknown to the registry.
var ErrParameterNotFound = errors.New("parameter not found")

// ParameterRegistryRepository reads tunable configuration values. Values are
// returned whole or not at all; callers must treat them as immutable
// snapshots for the duration of one orchestrated transaction.
type ParameterRegistryRepository interface {
	Get(ctx context.Context, name string) (datatypes.JSON, error)
	List(ctx context.Context) ([]entity.Parameter, error)
}

type parameterRegistryRepository struct {
	db    *gorm.DB
	cache *gocache.Cache
}

// NewParameterRegistryRepository creates a read-through cached registry.
func NewParameterRegistryRepository(db *gorm.DB, ttl, cleanupInterval time.Duration) ParameterRegistryRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &parameterRegistryRepository{
		db:    db,
		cache: gocache.New(ttl, cleanupInterval),
	}
}

func (r *parameterRegistryRepository) Get(ctx context.Context, name string) (datatypes.JSON, error) {
	if cached, ok := r.cache.Get(name); ok {
		return cached.(datatypes.JSON), nil
	}

	var param entity.Parameter
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&param).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrParameterNotFound, name)
		}
		return nil, err
	}

	r.cache.Set(name, param.Value, gocache.DefaultExpiration)
	return param.Value, nil
}

func (r *parameterRegistryRepository) List(ctx context.Context) ([]entity.Parameter, error) {
	var params []entity.Parameter
	if err := r.db.WithContext(ctx).Order("name").Find(&params).Error; err != nil {
		return nil, err
	}
	return params, nil
}
