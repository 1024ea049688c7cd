package config

import (
	"time"

	"golang-stock-trader/pkg/config"
)

// Trader holds execution-engine configuration.
type Trader struct {
	MaxConcurrentTasks                int           `mapstructure:"max_concurrent_tasks"`
	RedisStreamSignalExecutionTimeout time.Duration `mapstructure:"redis_stream_signal_execution_timeout"`
	RedisStreamPositionExitTimeout    time.Duration `mapstructure:"redis_stream_position_exit_timeout"`
	ExitMonitorSchedule               string        `mapstructure:"exit_monitor_schedule"`
	IngestionInterval                 time.Duration `mapstructure:"ingestion_interval"`
	IngestionTimeout                  time.Duration `mapstructure:"ingestion_timeout"`
	ParameterCacheTTL                 time.Duration `mapstructure:"parameter_cache_ttl"`
	ParameterCacheCleanupInterval     time.Duration `mapstructure:"parameter_cache_cleanup_interval"`
}

// KIS holds the Korea Investment & Securities broker configuration.
type KIS struct {
	AppKey              string `mapstructure:"app_key"`
	AppSecret           string `mapstructure:"app_secret"`
	AccountNo           string `mapstructure:"account_no"`
	ProductCode         string `mapstructure:"product_code"`
	Mode                string `mapstructure:"mode"`
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Paper holds the simulated broker configuration.
type Paper struct {
	BaseLatency time.Duration `mapstructure:"base_latency"`
}

// Broker selects and configures the broker capability.
type Broker struct {
	Provider string `mapstructure:"provider"`
	KIS      KIS    `mapstructure:"kis"`
	Paper    Paper  `mapstructure:"paper"`
}

// Ingestion holds the news feed configuration.
type Ingestion struct {
	FeedURL    string `mapstructure:"feed_url"`
	Source     string `mapstructure:"source"`
	SourceTier int    `mapstructure:"source_tier"`
}

// Config holds the full configuration for the trading service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	API       config.API      `mapstructure:"api"`
	Telegram  config.Telegram `mapstructure:"telegram"`
	Trader    Trader          `mapstructure:"trader"`
	Broker    Broker          `mapstructure:"broker"`
	Ingestion Ingestion       `mapstructure:"ingestion"`
}

// Load loads the trading-service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
