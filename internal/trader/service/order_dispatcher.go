package service

import (
	"context"
	"fmt"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/broker"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmitOrderParams describes one order submission on behalf of a position.
// IdempotencyKey, when set, is recorded on the order row so a replayed
// message can find the order its first delivery created.
type SubmitOrderParams struct {
	PositionID     *uint
	SignalID       *uint
	IdempotencyKey *string
	Ticker         string
	Side           entity.OrderSide
	Qty            float64
	OrderType      entity.OrderType
	LimitPrice     *float64
	ExpectedPrice  *float64
	Params         *TradingParams
}

// FillNotification is one broker fill callback. Duplicate notifications for
// the same (broker_order_id, fill_seq) are no-ops.
type FillNotification struct {
	BrokerOrderID string
	FillSeq       int
	Qty           float64
	Price         float64
}

// OrderDispatcher translates an allowed trading decision into broker order
// requests, tracks their status, and reconciles fills back into the ledger.
type OrderDispatcher interface {
	Submit(ctx context.Context, p SubmitOrderParams) (*entity.Order, broker.OrderResult, error)
	HandleFill(ctx context.Context, n FillNotification) error
}

type orderDispatcher struct {
	txm       repository.TxManager
	orderRepo repository.OrderRepository
	fillRepo  repository.OrderFillRepository
	posRepo   repository.PositionRepository
	ledger    PositionLedger
	broker    broker.Broker
	logger    *logger.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewOrderDispatcher creates a new OrderDispatcher.
func NewOrderDispatcher(
	txm repository.TxManager,
	orderRepo repository.OrderRepository,
	fillRepo repository.OrderFillRepository,
	posRepo repository.PositionRepository,
	ledger PositionLedger,
	brk broker.Broker,
	log *logger.Logger,
) OrderDispatcher {
	return &orderDispatcher{
		txm:       txm,
		orderRepo: orderRepo,
		fillRepo:  fillRepo,
		posRepo:   posRepo,
		ledger:    ledger,
		broker:    brk,
		logger:    log,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Submit creates the order row, then sends it to the broker. Transient send
// failures are retried up to the attempt cap with the configured minimum
// spacing; exhaustion makes the order terminally REJECTED so the caller can
// cancel the pending position transition instead of leaving it dangling.
// The broker call happens outside any position or date lock.
func (d *orderDispatcher) Submit(ctx context.Context, p SubmitOrderParams) (*entity.Order, broker.OrderResult, error) {
	order := &entity.Order{
		PositionID:     p.PositionID,
		SignalID:       p.SignalID,
		IdempotencyKey: p.IdempotencyKey,
		Ticker:         p.Ticker,
		Side:           p.Side,
		Qty:            p.Qty,
		OrderType:      p.OrderType,
		Price:          p.LimitPrice,
		Status:         entity.OrderNew,
		AttemptNo:      1,
	}
	if err := d.orderRepo.Create(ctx, order); err != nil {
		return nil, broker.OrderResult{}, err
	}

	maxAttempts := defaultMaxAttemptsPerSignal
	retryInterval := defaultMinRetryInterval
	if p.Params != nil {
		maxAttempts = p.Params.MaxAttemptsPerSignal
		retryInterval = p.Params.MinRetryInterval
	}

	req := broker.OrderRequest{
		Ticker:        p.Ticker,
		Side:          p.Side,
		Qty:           p.Qty,
		OrderType:     p.OrderType,
		ExpectedPrice: p.ExpectedPrice,
		ClientOrderID: uuid.NewString(),
	}
	if p.SignalID != nil {
		req.SignalID = *p.SignalID
	}

	for attempt := 1; ; attempt++ {
		result, err := d.broker.SubmitOrder(ctx, req)
		if err == nil {
			return d.finalize(ctx, order, result)
		}

		d.logger.Warn("Broker send failed",
			logger.ErrorField(err),
			logger.Field("order_id", order.ID),
			logger.IntField("attempt_no", attempt))

		if attempt >= maxAttempts {
			order.Status = entity.OrderRejected
			if saveErr := d.orderRepo.Save(ctx, order); saveErr != nil {
				return order, broker.OrderResult{}, saveErr
			}
			return order, broker.OrderResult{
				Status:     entity.OrderRejected,
				ReasonCode: "BROKER_UNAVAILABLE",
			}, nil
		}

		order.AttemptNo = attempt + 1
		if saveErr := d.orderRepo.Save(ctx, order); saveErr != nil {
			return order, broker.OrderResult{}, saveErr
		}
		if sleepErr := d.sleep(ctx, retryInterval); sleepErr != nil {
			return order, broker.OrderResult{}, sleepErr
		}
	}
}

func (d *orderDispatcher) finalize(ctx context.Context, order *entity.Order, result broker.OrderResult) (*entity.Order, broker.OrderResult, error) {
	if result.Status == entity.OrderRejected {
		order.Status = entity.OrderRejected
		if err := d.orderRepo.Save(ctx, order); err != nil {
			return order, result, err
		}
		return order, result, nil
	}

	now := d.now()
	order.BrokerOrderID = result.BrokerOrderID
	order.Status = entity.OrderSent
	order.SentAt = &now
	if result.Status == entity.OrderFilled {
		order.Status = entity.OrderFilled
		order.FilledAt = &now
	}
	if err := d.orderRepo.Save(ctx, order); err != nil {
		return order, result, err
	}
	return order, result, nil
}

// HandleFill records one fill notification and forwards quantity and price
// to the ledger. Orders already FILLED through the synchronous path ignore
// late duplicate callbacks; the fill row still lands for reconciliation.
func (d *orderDispatcher) HandleFill(ctx context.Context, n FillNotification) error {
	order, err := d.orderRepo.FindByBrokerOrderID(ctx, n.BrokerOrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("unknown broker order %s", n.BrokerOrderID)
	}

	prevStatus := order.Status
	var created bool

	err = d.txm.Do(ctx, func(tx *gorm.DB) error {
		fillRepo := d.fillRepo.WithTx(tx)
		orderRepo := d.orderRepo.WithTx(tx)

		created, err = fillRepo.CreateIfNew(ctx, &entity.OrderFill{
			OrderID:       order.ID,
			BrokerOrderID: n.BrokerOrderID,
			FillSeq:       n.FillSeq,
			Qty:           n.Qty,
			Price:         n.Price,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}

		fills, err := fillRepo.ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		var totalFilled float64
		for _, fill := range fills {
			totalFilled += fill.Qty
		}

		if prevStatus == entity.OrderSent || prevStatus == entity.OrderPartialFilled {
			if totalFilled >= order.Qty {
				now := d.now()
				order.Status = entity.OrderFilled
				order.FilledAt = &now
			} else {
				order.Status = entity.OrderPartialFilled
			}
			return orderRepo.Save(ctx, order)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if prevStatus != entity.OrderSent && prevStatus != entity.OrderPartialFilled {
		return nil
	}
	if order.PositionID == nil {
		return nil
	}

	return d.forwardFill(ctx, order, n)
}

func (d *orderDispatcher) forwardFill(ctx context.Context, order *entity.Order, n FillNotification) error {
	key := fmt.Sprintf("fill:%s:%d", n.BrokerOrderID, n.FillSeq)

	if order.Side == entity.SideSell {
		_, err := d.ledger.PartialExit(ctx, *order.PositionID, &order.ID, n.Qty, n.Price, "BROKER_FILL", key)
		return err
	}

	position, err := d.posRepo.FindByID(ctx, *order.PositionID)
	if err != nil {
		return err
	}
	switch position.Status {
	case entity.PositionPendingEntry:
		_, err = d.ledger.ConfirmEntry(ctx, position.ID, order.ID, n.Qty, n.Price, key)
	case entity.PositionOpen:
		_, err = d.ledger.Add(ctx, position.ID, order.ID, n.Qty, n.Price, key)
	default:
		d.logger.Warn("Dropping fill for position in terminal status",
			logger.Field("position_id", position.ID),
			logger.Field("status", position.Status),
			logger.Field("broker_order_id", n.BrokerOrderID))
	}
	return err
}
