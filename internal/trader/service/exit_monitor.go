package service

import (
	"context"
	"encoding/json"

	"golang-stock-trader/internal/trader/dto"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/utils"

	goRedis "github.com/redis/go-redis/v9"
)

// ExitMonitorService scans open positions that exceeded the configured
// holding period and enqueues a time-based exit for each.
type ExitMonitorService interface {
	ScanExpiredPositions(ctx context.Context)
}

type exitMonitorService struct {
	redisClient *goRedis.Client
	posRepo     repository.PositionRepository
	registry    repository.ParameterRegistryRepository
	logger      *logger.Logger
}

// NewExitMonitorService creates a new ExitMonitorService.
func NewExitMonitorService(
	redisClient *goRedis.Client,
	posRepo repository.PositionRepository,
	registry repository.ParameterRegistryRepository,
	log *logger.Logger,
) ExitMonitorService {
	return &exitMonitorService{
		redisClient: redisClient,
		posRepo:     posRepo,
		registry:    registry,
		logger:      log,
	}
}

// ScanExpiredPositions enqueues a full exit for every open position older
// than the max holding period. Enqueueing is not idempotent by itself; the
// consumer's exit key makes the duplicate a replay.
func (s *exitMonitorService) ScanExpiredPositions(ctx context.Context) {
	params, err := LoadTradingParams(ctx, s.registry)
	if err != nil {
		s.logger.Error("Failed to load trading parameters", logger.ErrorField(err))
		return
	}

	positions, err := s.posRepo.FindOpenOlderThan(ctx, params.MaxHoldingPeriodDays)
	if err != nil {
		s.logger.Error("Failed to scan expired positions", logger.ErrorField(err))
		return
	}
	if len(positions) == 0 {
		return
	}

	s.logger.Info("Enqueueing time-based exits", logger.IntField("count", len(positions)))
	// One scan per day can fire more than once; the trade-date exit key makes
	// every repeat for a position the same logical exit.
	exitKey := utils.TradeDateToday()
	for i := range positions {
		position := &positions[i]
		payload, err := json.Marshal(dto.StreamDataPositionExit{
			PositionID: position.ID,
			Qty:        position.Qty,
			ReasonCode: ReasonTimeExit,
			ExitKey:    exitKey,
		})
		if err != nil {
			s.logger.Error("Failed to marshal exit payload", logger.ErrorField(err), logger.Field("position_id", position.ID))
			continue
		}
		if err := s.redisClient.XAdd(ctx, &goRedis.XAddArgs{
			Stream: common.RedisStreamPositionExit,
			Values: map[string]interface{}{"payload": payload},
		}).Err(); err != nil {
			s.logger.Error("Failed to enqueue position exit", logger.ErrorField(err), logger.Field("position_id", position.ID))
		}
	}
}
