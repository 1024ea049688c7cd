package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/config"
	"golang-stock-trader/internal/trader/dto"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/telegram"
	"golang-stock-trader/pkg/utils"

	goRedis "github.com/redis/go-redis/v9"
)

// Exit and block reason codes written by the orchestrator.
const (
	ReasonDecisionHold  = "DECISION_HOLD"
	ReasonDecisionBlock = "DECISION_BLOCK"
	ReasonTimeExit      = "TIME_EXIT"
)

// ExecutionOrchestrator drains the signal-execution and position-exit
// streams and drives each message through the risk gate, the broker, and
// the position ledger. Message redelivery is safe: every ledger mutation
// carries a deterministic idempotency key.
type ExecutionOrchestrator interface {
	ProcessSignal(ctx context.Context, signalID uint) error
	ProcessExit(ctx context.Context, exit dto.StreamDataPositionExit) error
	ProcessTask(ctx context.Context)
	ProcessExitTask(ctx context.Context)
}

type executionOrchestrator struct {
	cfg         *config.Config
	redisClient *goRedis.Client
	signalRepo  repository.SignalRepository
	posRepo     repository.PositionRepository
	orderRepo   repository.OrderRepository
	registry    repository.ParameterRegistryRepository
	ledger      PositionLedger
	dispatcher  OrderDispatcher
	riskGate    RiskGate
	notifier    telegram.Notifier
	logger      *logger.Logger
	now         func() time.Time
}

// NewExecutionOrchestrator creates a new ExecutionOrchestrator.
func NewExecutionOrchestrator(
	cfg *config.Config,
	redisClient *goRedis.Client,
	signalRepo repository.SignalRepository,
	posRepo repository.PositionRepository,
	orderRepo repository.OrderRepository,
	registry repository.ParameterRegistryRepository,
	ledger PositionLedger,
	dispatcher OrderDispatcher,
	riskGate RiskGate,
	notifier telegram.Notifier,
	log *logger.Logger,
) ExecutionOrchestrator {
	return &executionOrchestrator{
		cfg:         cfg,
		redisClient: redisClient,
		signalRepo:  signalRepo,
		posRepo:     posRepo,
		orderRepo:   orderRepo,
		registry:    registry,
		ledger:      ledger,
		dispatcher:  dispatcher,
		riskGate:    riskGate,
		notifier:    notifier,
		logger:      log,
		now:         utils.TimeNowKST,
	}
}

// ProcessSignal runs one scored signal through risk gating and order
// placement. Re-invoking with the same signal ID replays the recorded
// outcome instead of acting twice.
func (o *executionOrchestrator) ProcessSignal(ctx context.Context, signalID uint) error {
	signal, err := o.signalRepo.FindByID(ctx, signalID)
	if err != nil {
		return fmt.Errorf("load signal %d: %w", signalID, err)
	}

	params, err := LoadTradingParams(ctx, o.registry)
	if err != nil {
		return err
	}

	switch signal.Decision {
	case entity.DecisionBlock, entity.DecisionIgnore:
		return o.blockSignal(ctx, signal, ReasonDecisionBlock)
	case entity.DecisionHold:
		return o.blockSignal(ctx, signal, ReasonDecisionHold)
	}

	tradeDate := utils.TradeDate(o.now())
	// Notional is unknown before the fill; the gate's checks are flag-based.
	decision, err := o.riskGate.Evaluate(ctx, signal.Ticker, tradeDate, 0)
	if err != nil {
		return fmt.Errorf("risk evaluate for signal %d: %w", signalID, err)
	}
	if !decision.Allowed {
		return o.blockSignal(ctx, signal, decision.ReasonCode)
	}

	// A redelivered message whose first delivery already reached the broker
	// must not submit a second order.
	existing, err := o.orderRepo.FindBySignal(ctx, signal.ID, entity.SideBuy)
	if err != nil {
		return err
	}
	for i := range existing {
		ord := &existing[i]
		if !ord.Status.Terminal() || ord.Status == entity.OrderFilled {
			o.logger.Info("Signal already has an entry order, skipping submit",
				logger.Field("signal_id", signal.ID),
				logger.Field("order_id", ord.ID),
				logger.Field("order_status", ord.Status))
			return nil
		}
	}

	openPositions, err := o.posRepo.FindOpenByTicker(ctx, signal.Ticker)
	if err != nil {
		return err
	}

	var position *entity.Position
	addToExisting := false
	for i := range openPositions {
		if openPositions[i].Status == entity.PositionOpen {
			position = &openPositions[i]
			addToExisting = true
			break
		}
	}
	if position == nil {
		position, err = o.ledger.CreatePending(ctx, signal.ID, signal.Ticker, params.DefaultOrderQty)
		if err != nil {
			return err
		}
	}

	order, result, err := o.dispatcher.Submit(ctx, SubmitOrderParams{
		PositionID: utils.ToPointer(position.ID),
		SignalID:   utils.ToPointer(signal.ID),
		Ticker:     signal.Ticker,
		Side:       entity.SideBuy,
		Qty:        params.DefaultOrderQty,
		OrderType:  entity.OrderTypeMarket,
		Params:     params,
	})
	if err != nil {
		return err
	}

	switch result.Status {
	case entity.OrderFilled:
		var res *LedgerResult
		if addToExisting {
			res, err = o.ledger.Add(ctx, position.ID, order.ID, result.FilledQty, result.AvgPrice,
				fmt.Sprintf("add:signal:%d", signal.ID))
		} else {
			res, err = o.ledger.ConfirmEntry(ctx, position.ID, order.ID, result.FilledQty, result.AvgPrice,
				fmt.Sprintf("entry:signal:%d", signal.ID))
		}
		if err != nil {
			return err
		}
		o.notify(telegram.FormatOrderFilled(signal.Ticker, result.AvgPrice, signal.ID, position.ID, res.Event.ID))
		return nil
	case entity.OrderRejected, entity.OrderCancelled, entity.OrderExpired:
		if addToExisting {
			// No pending state to roll back; the existing position is untouched.
			o.logger.Warn("Add order failed",
				logger.Field("signal_id", signal.ID),
				logger.Field("position_id", position.ID),
				logger.Field("reason", result.ReasonCode))
			return nil
		}
		_, err = o.ledger.CancelEntry(ctx, position.ID, order.ID, result.ReasonCode,
			fmt.Sprintf("cancel:signal:%d", signal.ID))
		return err
	default:
		// SENT or PARTIAL_FILLED: the async fill path completes the entry.
		o.logger.Info("Order in flight, awaiting fills",
			logger.Field("order_id", order.ID),
			logger.Field("status", result.Status))
		return nil
	}
}

// blockSignal records a BLOCK event for the signal and notifies. Replay of
// the same signal yields the original event.
func (o *executionOrchestrator) blockSignal(ctx context.Context, signal *entity.Signal, reasonCode string) error {
	res, err := o.ledger.Block(ctx, utils.ToPointer(signal.ID), nil, signal.Ticker, reasonCode,
		fmt.Sprintf("block:signal:%d", signal.ID))
	if err != nil {
		return err
	}
	if !res.Replayed {
		o.notify(telegram.FormatBlocked(reasonCode))
	}
	return nil
}

// exitIdempotencyKey derives the key for one logical exit. The exit key in
// the message keeps distinct exit requests with the same reason apart;
// messages without one fall back to position+reason.
func exitIdempotencyKey(positionID uint, exit dto.StreamDataPositionExit) string {
	if exit.ExitKey != "" {
		return fmt.Sprintf("exit:%d:%s:%s", positionID, exit.ReasonCode, exit.ExitKey)
	}
	return fmt.Sprintf("exit:%d:%s", positionID, exit.ReasonCode)
}

// ProcessExit closes out qty of a position through a SELL order and feeds
// the realized result into the risk state.
func (o *executionOrchestrator) ProcessExit(ctx context.Context, exit dto.StreamDataPositionExit) error {
	position, err := o.posRepo.FindByID(ctx, exit.PositionID)
	if err != nil {
		return fmt.Errorf("load position %d: %w", exit.PositionID, err)
	}
	if position.Status.Terminal() {
		o.logger.Info("Position already terminal, skipping exit",
			logger.Field("position_id", position.ID),
			logger.Field("status", position.Status))
		return nil
	}

	params, err := LoadTradingParams(ctx, o.registry)
	if err != nil {
		return err
	}

	qty := exit.Qty
	if qty <= 0 || qty > position.Qty {
		qty = position.Qty
	}

	key := exitIdempotencyKey(position.ID, exit)

	// A redelivered message whose first delivery already reached the broker
	// must not sell again.
	existing, err := o.orderRepo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Status == entity.OrderFilled {
			// The sell happened; finish the ledger side with the recorded
			// order. If the first delivery got that far too, the exit key
			// replays the original event.
			return o.applyExit(ctx, position, existing.ID, existing.Qty, position.AvgEntryPrice, exit.ReasonCode, key, params)
		}
		if !existing.Status.Terminal() {
			o.logger.Info("Exit order already in flight, skipping submit",
				logger.Field("position_id", position.ID),
				logger.Field("order_id", existing.ID),
				logger.Field("order_status", existing.Status))
			return nil
		}
		// Terminal without a fill (rejected or expired): submit a fresh order.
	}

	order, result, err := o.dispatcher.Submit(ctx, SubmitOrderParams{
		PositionID:     utils.ToPointer(position.ID),
		SignalID:       position.SignalID,
		IdempotencyKey: utils.ToPointer(key),
		Ticker:         position.Ticker,
		Side:           entity.SideSell,
		Qty:            qty,
		OrderType:      entity.OrderTypeMarket,
		ExpectedPrice:  utils.ToPointer(position.AvgEntryPrice),
		Params:         params,
	})
	if err != nil {
		return err
	}
	if result.Status != entity.OrderFilled {
		o.logger.Warn("Exit order not filled",
			logger.Field("position_id", position.ID),
			logger.Field("order_id", order.ID),
			logger.Field("status", result.Status),
			logger.Field("reason", result.ReasonCode))
		return nil
	}

	return o.applyExit(ctx, position, order.ID, result.FilledQty, result.AvgPrice, exit.ReasonCode, key, params)
}

// applyExit records the exit in the ledger and, when the event is new,
// feeds the realized result into the risk state.
func (o *executionOrchestrator) applyExit(ctx context.Context, position *entity.Position, orderID uint, qty, price float64, reasonCode, key string, params *TradingParams) error {
	res, err := o.ledger.PartialExit(ctx, position.ID, utils.ToPointer(orderID), qty, price, reasonCode, key)
	if err != nil {
		return err
	}
	if res.Replayed {
		return nil
	}

	tradeDate := utils.TradeDate(o.now())
	isLoss := res.RealizedPnl < 0
	if err := o.riskGate.RecordOutcome(ctx, tradeDate, res.RealizedPnl, 0, isLoss, params); err != nil {
		return err
	}

	if res.Closed {
		o.notify(telegram.FormatPositionClosed(position.ID, reasonCode))
	}
	return nil
}

// ProcessTask dequeues and executes a single signal-execution task.
func (o *executionOrchestrator) ProcessTask(ctx context.Context) {
	message, ok := o.readOne(ctx, common.RedisStreamSignalExecution)
	if !ok {
		return
	}

	var data dto.StreamDataSignalExecution
	if !o.decodePayload(ctx, common.RedisStreamSignalExecution, message, &data) {
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, o.cfg.Trader.RedisStreamSignalExecutionTimeout)
	defer cancel()

	if err := o.ProcessSignal(execCtx, data.SignalID); err != nil {
		o.logger.Error("Signal execution failed", logger.ErrorField(err), logger.Field("signal_id", data.SignalID))
		return
	}
	o.ack(ctx, common.RedisStreamSignalExecution, message.ID)
}

// ProcessExitTask dequeues and executes a single position-exit task.
func (o *executionOrchestrator) ProcessExitTask(ctx context.Context) {
	message, ok := o.readOne(ctx, common.RedisStreamPositionExit)
	if !ok {
		return
	}

	var data dto.StreamDataPositionExit
	if !o.decodePayload(ctx, common.RedisStreamPositionExit, message, &data) {
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, o.cfg.Trader.RedisStreamPositionExitTimeout)
	defer cancel()

	if err := o.ProcessExit(execCtx, data); err != nil {
		o.logger.Error("Position exit failed", logger.ErrorField(err), logger.Field("position_id", data.PositionID))
		return
	}
	o.ack(ctx, common.RedisStreamPositionExit, message.ID)
}

func (o *executionOrchestrator) readOne(ctx context.Context, stream string) (goRedis.XMessage, bool) {
	streams, err := o.redisClient.XReadGroup(ctx, &goRedis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{stream, ">"}, // ">" means only new messages
		Count:    1,
		Block:    2 * time.Second, // Block briefly to allow graceful shutdown
	}).Result()
	if err != nil {
		// Context cancellation and empty reads are expected during shutdown or idle periods.
		if err == context.Canceled || err == goRedis.Nil {
			return goRedis.XMessage{}, false
		}
		o.logger.Error("Failed to read from stream", logger.ErrorField(err), logger.Field("stream", stream))
		return goRedis.XMessage{}, false
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return goRedis.XMessage{}, false
	}
	return streams[0].Messages[0], true
}

// decodePayload unmarshals the message's payload field. Malformed messages
// are acknowledged so they are not redelivered forever.
func (o *executionOrchestrator) decodePayload(ctx context.Context, stream string, message goRedis.XMessage, out interface{}) bool {
	payload, ok := message.Values["payload"].(string)
	if !ok {
		o.logger.Error("field 'payload' not found or not a string in stream message",
			logger.Field("stream", stream), logger.Field("message_id", message.ID))
		o.ack(ctx, stream, message.ID)
		return false
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		o.logger.Error("Failed to unmarshal stream payload", logger.ErrorField(err),
			logger.Field("stream", stream), logger.Field("message_id", message.ID))
		o.ack(ctx, stream, message.ID)
		return false
	}
	return true
}

func (o *executionOrchestrator) ack(ctx context.Context, stream, messageID string) {
	if err := o.redisClient.XAck(ctx, stream, common.RedisStreamGroup, messageID).Err(); err != nil {
		o.logger.Error("Failed to acknowledge message", logger.ErrorField(err),
			logger.Field("stream", stream), logger.Field("message_id", messageID))
	}
}

func (o *executionOrchestrator) notify(text string) {
	if err := o.notifier.SendMessage(text); err != nil {
		o.logger.Warn("Failed to send notification", logger.ErrorField(err))
	}
}
