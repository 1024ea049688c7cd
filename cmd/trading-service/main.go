package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-stock-trader/internal/trader/broker"
	"golang-stock-trader/internal/trader/config"
	"golang-stock-trader/internal/trader/delivery/consumer"
	delivery "golang-stock-trader/internal/trader/delivery/http"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/internal/trader/service"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/postgres"
	"golang-stock-trader/pkg/redis"
	"golang-stock-trader/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the trading service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Trading Service", zap.String("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Create the consumer groups if they don't exist.
	// MKSTREAM creates the stream if it doesn't exist.
	for _, stream := range []string{common.RedisStreamSignalExecution, common.RedisStreamPositionExit} {
		if err := redisClient.XGroupCreateMkStream(context.Background(), stream, common.RedisStreamGroup, "0").Err(); err != nil {
			if err.Error() != "BUSYGROUP Consumer Group name already exists" {
				appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err), logger.Field("stream", stream))
			}
		}
	}

	// Initialize repositories
	txManager := repository.NewTxManager(db.DB)
	newsRepo := repository.NewNewsRepository(db.DB)
	eventTickerRepo := repository.NewEventTickerRepository(db.DB)
	signalRepo := repository.NewSignalRepository(db.DB)
	positionRepo := repository.NewPositionRepository(db.DB)
	positionEventRepo := repository.NewPositionEventRepository(db.DB)
	orderRepo := repository.NewOrderRepository(db.DB)
	orderFillRepo := repository.NewOrderFillRepository(db.DB)
	riskStateRepo := repository.NewRiskStateRepository(db.DB)
	registryRepo := repository.NewParameterRegistryRepository(db.DB, cfg.Trader.ParameterCacheTTL, cfg.Trader.ParameterCacheCleanupInterval)

	// Initialize broker
	var brk broker.Broker
	switch cfg.Broker.Provider {
	case "kis":
		brk = broker.NewKISBroker(cfg.Broker.KIS, appLogger)
	case "paper":
		brk = broker.NewPaperBroker(cfg.Broker.Paper.BaseLatency)
	default:
		appLogger.Fatal("Invalid broker provider specified in config", zap.String("provider", cfg.Broker.Provider))
	}

	var telegramNotifier telegram.Notifier
	if cfg.Telegram.BotToken != "" {
		telegramNotifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
		}
	} else {
		telegramNotifier = telegram.NewNoopNotifier()
	}

	// Initialize services
	ledger := service.NewPositionLedger(txManager, positionRepo, positionEventRepo, appLogger)
	riskGate := service.NewRiskGate(txManager, riskStateRepo, appLogger)
	dispatcher := service.NewOrderDispatcher(txManager, orderRepo, orderFillRepo, positionRepo, ledger, brk, appLogger)
	tickerMapper := service.NewTickerMapper()
	ingestionSvc := service.NewNewsIngestionService(cfg, redisClient.Client, newsRepo, eventTickerRepo, signalRepo, registryRepo, tickerMapper, telegramNotifier, appLogger)
	orchestrator := service.NewExecutionOrchestrator(cfg, redisClient.Client, signalRepo, positionRepo, orderRepo, registryRepo, ledger, dispatcher, riskGate, telegramNotifier, appLogger)
	exitMonitor := service.NewExitMonitorService(redisClient.Client, positionRepo, registryRepo, appLogger)

	// Initialize and start the Redis consumer
	redisConsumer := consumer.NewRedisConsumer(cfg, redisClient.Client, orchestrator, ingestionSvc, appLogger)
	redisConsumer.Start(ctx)

	// Schedule the exit monitor
	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc(cfg.Trader.ExitMonitorSchedule, func() {
		exitMonitor.ScanExpiredPositions(ctx)
	}); err != nil {
		appLogger.Fatal("Invalid exit monitor schedule", zap.Error(err), zap.String("schedule", cfg.Trader.ExitMonitorSchedule))
	}
	cronRunner.Start()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	positionHandler := delivery.NewPositionHandler(positionRepo, positionEventRepo, appLogger)
	riskHandler := delivery.NewRiskHandler(riskStateRepo, registryRepo, appLogger)
	healthHandler := delivery.NewHealthHandler(brk)

	apiV1 := e.Group("/api/v1")
	positionsGroup := apiV1.Group("/positions")
	positionHandler.RegisterRoutes(positionsGroup)
	riskHandler.RegisterRoutes(apiV1)
	healthHandler.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			cancel()
		}
	}()

	appLogger.Info("Trading service started. Waiting for tasks...")

	// Wait for interrupt signal to gracefully shut down the service
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down trading service...")
	cancel()
	<-cronRunner.Stop().Done()
	redisConsumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Trading service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "trading-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-trader.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing trading-service CLI: %s\n", err)
		os.Exit(1)
	}
}
