package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang-stock-trader/internal/trader/repository"
)

// Registry parameter names consumed by the trading core.
const (
	ParamScoreWeights         = "score_weights"
	ParamDailyLossLimit       = "daily_loss_limit"
	ParamMaxConsecutiveLosses = "max_consecutive_losses"
	ParamCooldownDurationSec  = "cooldown_duration_sec"
	ParamMaxAttemptsPerSignal = "max_attempts_per_signal"
	ParamMinRetryIntervalSec  = "min_retry_interval_sec"
	ParamMinMapConfidence     = "min_map_confidence"
	ParamBuyThreshold         = "buy_threshold"
	ParamDefaultOrderQty      = "default_order_qty"
	ParamMaxHoldingPeriodDays = "max_holding_period_days"
)

const (
	defaultMaxAttemptsPerSignal = 2
	defaultMinRetryInterval     = 30 * time.Second
)

// TradingParams is an immutable snapshot of the registry values one
// orchestrated transaction runs with. It is read once per signal; concurrent
// registry changes take effect on the next read.
type TradingParams struct {
	ScoreWeights         map[string]float64
	DailyLossLimit       float64
	MaxConsecutiveLosses int
	CooldownDuration     time.Duration
	MaxAttemptsPerSignal int
	MinRetryInterval     time.Duration
	MinMapConfidence     float64
	BuyThreshold         float64
	DefaultOrderQty      float64
	MaxHoldingPeriodDays int
}

// LoadTradingParams snapshots the registry. The loss-limit and cooldown
// thresholds are required tuning inputs; the retry policy falls back to its
// documented defaults when untuned.
func LoadTradingParams(ctx context.Context, registry repository.ParameterRegistryRepository) (*TradingParams, error) {
	params := &TradingParams{
		MaxAttemptsPerSignal: defaultMaxAttemptsPerSignal,
		MinRetryInterval:     defaultMinRetryInterval,
		MinMapConfidence:     0.92,
		BuyThreshold:         70,
		DefaultOrderQty:      1,
		MaxHoldingPeriodDays: 5,
	}

	if err := loadRequiredFloat(ctx, registry, ParamDailyLossLimit, &params.DailyLossLimit); err != nil {
		return nil, err
	}
	if err := loadRequiredInt(ctx, registry, ParamMaxConsecutiveLosses, &params.MaxConsecutiveLosses); err != nil {
		return nil, err
	}
	var cooldownSec float64
	if err := loadRequiredFloat(ctx, registry, ParamCooldownDurationSec, &cooldownSec); err != nil {
		return nil, err
	}
	params.CooldownDuration = time.Duration(cooldownSec * float64(time.Second))

	if err := loadOptionalInt(ctx, registry, ParamMaxAttemptsPerSignal, &params.MaxAttemptsPerSignal); err != nil {
		return nil, err
	}
	var retrySec float64
	found, err := loadOptionalFloat(ctx, registry, ParamMinRetryIntervalSec, &retrySec)
	if err != nil {
		return nil, err
	}
	if found {
		params.MinRetryInterval = time.Duration(retrySec * float64(time.Second))
	}

	if _, err := loadOptionalFloat(ctx, registry, ParamMinMapConfidence, &params.MinMapConfidence); err != nil {
		return nil, err
	}
	if _, err := loadOptionalFloat(ctx, registry, ParamBuyThreshold, &params.BuyThreshold); err != nil {
		return nil, err
	}
	if _, err := loadOptionalFloat(ctx, registry, ParamDefaultOrderQty, &params.DefaultOrderQty); err != nil {
		return nil, err
	}
	if err := loadOptionalInt(ctx, registry, ParamMaxHoldingPeriodDays, &params.MaxHoldingPeriodDays); err != nil {
		return nil, err
	}

	if weights, err := loadWeights(ctx, registry); err != nil {
		return nil, err
	} else if weights != nil {
		params.ScoreWeights = weights
	}

	return params, nil
}

func loadRequiredFloat(ctx context.Context, registry repository.ParameterRegistryRepository, name string, out *float64) error {
	found, err := loadOptionalFloat(ctx, registry, name, out)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, name)
	}
	return nil
}

func loadOptionalFloat(ctx context.Context, registry repository.ParameterRegistryRepository, name string, out *float64) (bool, error) {
	raw, err := registry.Get(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrParameterNotFound) {
			return false, nil
		}
		return false, err
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, fmt.Errorf("invalid value for parameter %s: %w", name, err)
	}
	*out = value
	return true, nil
}

func loadRequiredInt(ctx context.Context, registry repository.ParameterRegistryRepository, name string, out *int) error {
	var value float64
	if err := loadRequiredFloat(ctx, registry, name, &value); err != nil {
		return err
	}
	*out = int(value)
	return nil
}

func loadOptionalInt(ctx context.Context, registry repository.ParameterRegistryRepository, name string, out *int) error {
	value := float64(*out)
	if _, err := loadOptionalFloat(ctx, registry, name, &value); err != nil {
		return err
	}
	*out = int(value)
	return nil
}

func loadWeights(ctx context.Context, registry repository.ParameterRegistryRepository) (map[string]float64, error) {
	raw, err := registry.Get(ctx, ParamScoreWeights)
	if err != nil {
		if errors.Is(err, repository.ErrParameterNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var weights map[string]float64
	if err := json.Unmarshal(raw, &weights); err != nil {
		return nil, fmt.Errorf("invalid value for parameter %s: %w", ParamScoreWeights, err)
	}
	return weights, nil
}
