package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// positionTransitions is the explicit transition table for the position
// state machine. Any move not listed here is rejected as illegal.
var positionTransitions = map[entity.PositionStatus][]entity.PositionStatus{
	entity.PositionPendingEntry: {entity.PositionOpen, entity.PositionCancelled},
	entity.PositionOpen:         {entity.PositionOpen, entity.PositionPartialExit, entity.PositionClosed},
	entity.PositionPartialExit:  {entity.PositionOpen},
	entity.PositionClosed:       {},
	entity.PositionCancelled:    {},
}

func canTransition(from, to entity.PositionStatus) bool {
	for _, allowed := range positionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LedgerResult is the recorded outcome of a ledger mutation. Replayed is set
// when the idempotency key matched a previously recorded event; in that case
// no mutation happened and Event is the original record.
type LedgerResult struct {
	Position    *entity.Position
	Event       *entity.PositionEvent
	RealizedPnl float64
	Closed      bool
	Replayed    bool
}

// PositionLedger owns the position lifecycle and the append-only event log.
// Every mutating call takes an idempotency key: a retry presenting the same
// key returns the original outcome without re-applying anything.
type PositionLedger interface {
	CreatePending(ctx context.Context, signalID uint, ticker string, qty float64) (*entity.Position, error)
	ConfirmEntry(ctx context.Context, positionID, orderID uint, filledQty, avgPrice float64, idempotencyKey string) (*LedgerResult, error)
	CancelEntry(ctx context.Context, positionID, orderID uint, reasonCode, idempotencyKey string) (*LedgerResult, error)
	Add(ctx context.Context, positionID, orderID uint, qty, price float64, idempotencyKey string) (*LedgerResult, error)
	PartialExit(ctx context.Context, positionID uint, orderID *uint, qty, exitPrice float64, reasonCode, idempotencyKey string) (*LedgerResult, error)
	Block(ctx context.Context, signalID *uint, positionID *uint, ticker, reasonCode, idempotencyKey string) (*LedgerResult, error)
}

type positionLedger struct {
	txm       repository.TxManager
	posRepo   repository.PositionRepository
	eventRepo repository.PositionEventRepository
	logger    *logger.Logger
	now       func() time.Time
}

// NewPositionLedger creates a new PositionLedger.
func NewPositionLedger(
	txm repository.TxManager,
	posRepo repository.PositionRepository,
	eventRepo repository.PositionEventRepository,
	log *logger.Logger,
) PositionLedger {
	return &positionLedger{
		txm:       txm,
		posRepo:   posRepo,
		eventRepo: eventRepo,
		logger:    log,
		now:       time.Now,
	}
}

func detailJSON(fields map[string]interface{}) datatypes.JSON {
	raw, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

// replayedResult resolves an idempotency-key hit to the winner's event.
func (l *positionLedger) replayedResult(ctx context.Context, posRepo repository.PositionRepository, event *entity.PositionEvent) (*LedgerResult, error) {
	result := &LedgerResult{Event: event, Replayed: true}
	if event.PositionID != nil {
		position, err := posRepo.FindByID(ctx, *event.PositionID)
		if err != nil {
			return nil, err
		}
		result.Position = position
		result.Closed = position.Status == entity.PositionClosed
	}
	return result, nil
}

// appendEvent inserts the event, resolving a concurrent duplicate-key loss
// to the winner's recorded event.
func (l *positionLedger) appendEvent(ctx context.Context, eventRepo repository.PositionEventRepository, event *entity.PositionEvent) (*entity.PositionEvent, bool, error) {
	err := eventRepo.Create(ctx, event)
	if err == nil {
		return event, false, nil
	}
	if err != repository.ErrDuplicateIdempotencyKey {
		return nil, false, err
	}
	winner, ferr := eventRepo.FindByIdempotencyKey(ctx, *event.IdempotencyKey)
	if ferr != nil {
		return nil, false, ferr
	}
	if winner == nil {
		return nil, false, err
	}
	return winner, true, nil
}

func (l *positionLedger) CreatePending(ctx context.Context, signalID uint, ticker string, qty float64) (*entity.Position, error) {
	position := &entity.Position{
		Ticker:   ticker,
		SignalID: &signalID,
		Status:   entity.PositionPendingEntry,
		Qty:      qty,
		Leverage: 1,
	}
	if err := l.posRepo.Create(ctx, position); err != nil {
		return nil, err
	}
	return position, nil
}

func (l *positionLedger) ConfirmEntry(ctx context.Context, positionID, orderID uint, filledQty, avgPrice float64, idempotencyKey string) (*LedgerResult, error) {
	var result *LedgerResult
	err := l.txm.Do(ctx, func(tx *gorm.DB) error {
		posRepo := l.posRepo.WithTx(tx)
		eventRepo := l.eventRepo.WithTx(tx)

		if existing, err := eventRepo.FindByIdempotencyKey(ctx, idempotencyKey); err != nil {
			return err
		} else if existing != nil {
			replayed, err := l.replayedResult(ctx, posRepo, existing)
			if err != nil {
				return err
			}
			result = replayed
			return nil
		}

		position, err := posRepo.FindByIDForUpdate(ctx, positionID)
		if err != nil {
			return err
		}
		if !canTransition(position.Status, entity.PositionOpen) {
			return fmt.Errorf("%w: %s -> OPEN for position %d", ErrIllegalTransition, position.Status, positionID)
		}

		rows, err := posRepo.UpdateTransition(ctx, positionID, []entity.PositionStatus{entity.PositionPendingEntry}, map[string]interface{}{
			"status":          entity.PositionOpen,
			"qty":             filledQty,
			"avg_entry_price": avgPrice,
			"opened_value":    avgPrice * filledQty,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s -> OPEN for position %d", ErrIllegalTransition, position.Status, positionID)
		}

		event := &entity.PositionEvent{
			PositionID:     &positionID,
			EventType:      entity.EventEntry,
			Action:         entity.ActionExecuted,
			ReasonCode:     "ENTRY_FILLED",
			Detail:         detailJSON(map[string]interface{}{"order_id": orderID, "filled_qty": filledQty, "avg_price": avgPrice}),
			IdempotencyKey: &idempotencyKey,
		}
		recorded, replayed, err := l.appendEvent(ctx, eventRepo, event)
		if err != nil {
			return err
		}
		if replayed {
			replayedResult, err := l.replayedResult(ctx, posRepo, recorded)
			if err != nil {
				return err
			}
			result = replayedResult
			return nil
		}

		position, err = posRepo.FindByID(ctx, positionID)
		if err != nil {
			return err
		}
		result = &LedgerResult{Position: position, Event: recorded}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *positionLedger) CancelEntry(ctx context.Context, positionID, orderID uint, reasonCode, idempotencyKey string) (*LedgerResult, error) {
	var result *LedgerResult
	err := l.txm.Do(ctx, func(tx *gorm.DB) error {
		posRepo := l.posRepo.WithTx(tx)
		eventRepo := l.eventRepo.WithTx(tx)

		if existing, err := eventRepo.FindByIdempotencyKey(ctx, idempotencyKey); err != nil {
			return err
		} else if existing != nil {
			replayed, err := l.replayedResult(ctx, posRepo, existing)
			if err != nil {
				return err
			}
			result = replayed
			return nil
		}

		position, err := posRepo.FindByIDForUpdate(ctx, positionID)
		if err != nil {
			return err
		}
		if !canTransition(position.Status, entity.PositionCancelled) {
			return fmt.Errorf("%w: %s -> CANCELLED for position %d", ErrIllegalTransition, position.Status, positionID)
		}

		rows, err := posRepo.UpdateTransition(ctx, positionID, []entity.PositionStatus{entity.PositionPendingEntry}, map[string]interface{}{
			"status": entity.PositionCancelled,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s -> CANCELLED for position %d", ErrIllegalTransition, position.Status, positionID)
		}

		event := &entity.PositionEvent{
			PositionID:     &positionID,
			EventType:      entity.EventEntry,
			Action:         entity.ActionSkipped,
			ReasonCode:     reasonCode,
			Detail:         detailJSON(map[string]interface{}{"order_id": orderID}),
			IdempotencyKey: &idempotencyKey,
		}
		recorded, replayed, err := l.appendEvent(ctx, eventRepo, event)
		if err != nil {
			return err
		}
		if replayed {
			replayedResult, err := l.replayedResult(ctx, posRepo, recorded)
			if err != nil {
				return err
			}
			result = replayedResult
			return nil
		}

		position, err = posRepo.FindByID(ctx, positionID)
		if err != nil {
			return err
		}
		result = &LedgerResult{Position: position, Event: recorded}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *positionLedger) Add(ctx context.Context, positionID, orderID uint, qty, price float64, idempotencyKey string) (*LedgerResult, error) {
	var result *LedgerResult
	err := l.txm.Do(ctx, func(tx *gorm.DB) error {
		posRepo := l.posRepo.WithTx(tx)
		eventRepo := l.eventRepo.WithTx(tx)

		if existing, err := eventRepo.FindByIdempotencyKey(ctx, idempotencyKey); err != nil {
			return err
		} else if existing != nil {
			replayed, err := l.replayedResult(ctx, posRepo, existing)
			if err != nil {
				return err
			}
			result = replayed
			return nil
		}

		position, err := posRepo.FindByIDForUpdate(ctx, positionID)
		if err != nil {
			return err
		}
		if position.Status != entity.PositionOpen {
			return fmt.Errorf("%w: ADD requires OPEN, position %d is %s", ErrIllegalTransition, positionID, position.Status)
		}

		newQty := position.Qty + qty
		newAvg := (position.AvgEntryPrice*position.Qty + price*qty) / newQty

		rows, err := posRepo.UpdateTransition(ctx, positionID, []entity.PositionStatus{entity.PositionOpen}, map[string]interface{}{
			"status":          entity.PositionOpen,
			"qty":             newQty,
			"avg_entry_price": newAvg,
			"opened_value":    position.OpenedValue + price*qty,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: ADD requires OPEN, position %d is %s", ErrIllegalTransition, positionID, position.Status)
		}

		event := &entity.PositionEvent{
			PositionID:     &positionID,
			EventType:      entity.EventAdd,
			Action:         entity.ActionExecuted,
			ReasonCode:     "ADD_FILLED",
			Detail:         detailJSON(map[string]interface{}{"order_id": orderID, "add_qty": qty, "price": price, "new_qty": newQty, "new_avg_price": newAvg}),
			IdempotencyKey: &idempotencyKey,
		}
		recorded, replayed, err := l.appendEvent(ctx, eventRepo, event)
		if err != nil {
			return err
		}
		if replayed {
			replayedResult, err := l.replayedResult(ctx, posRepo, recorded)
			if err != nil {
				return err
			}
			result = replayedResult
			return nil
		}

		position, err = posRepo.FindByID(ctx, positionID)
		if err != nil {
			return err
		}
		result = &LedgerResult{Position: position, Event: recorded}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *positionLedger) PartialExit(ctx context.Context, positionID uint, orderID *uint, qty, exitPrice float64, reasonCode, idempotencyKey string) (*LedgerResult, error) {
	var result *LedgerResult
	err := l.txm.Do(ctx, func(tx *gorm.DB) error {
		posRepo := l.posRepo.WithTx(tx)
		eventRepo := l.eventRepo.WithTx(tx)

		if existing, err := eventRepo.FindByIdempotencyKey(ctx, idempotencyKey); err != nil {
			return err
		} else if existing != nil {
			replayed, err := l.replayedResult(ctx, posRepo, existing)
			if err != nil {
				return err
			}
			result = replayed
			return nil
		}

		position, err := posRepo.FindByIDForUpdate(ctx, positionID)
		if err != nil {
			return err
		}
		if position.Status != entity.PositionOpen {
			return fmt.Errorf("%w: exit requires OPEN, position %d is %s", ErrIllegalTransition, positionID, position.Status)
		}
		if qty <= 0 || qty > position.Qty {
			return fmt.Errorf("%w: exit qty %g out of range for position %d (qty %g)", ErrIllegalTransition, qty, positionID, position.Qty)
		}

		remaining := position.Qty - qty
		realized := (exitPrice - position.AvgEntryPrice) * qty

		updates := map[string]interface{}{"qty": remaining}
		eventType := entity.EventPartialExit
		if remaining > 0 {
			updates["status"] = entity.PositionOpen
		} else {
			now := l.now()
			updates["status"] = entity.PositionClosed
			updates["closed_at"] = &now
			updates["exit_reason_code"] = reasonCode
			eventType = entity.EventFullExit
		}

		rows, err := posRepo.UpdateTransition(ctx, positionID, []entity.PositionStatus{entity.PositionOpen}, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: exit requires OPEN, position %d is %s", ErrIllegalTransition, positionID, position.Status)
		}

		detail := map[string]interface{}{
			"exit_qty":      qty,
			"exit_price":    exitPrice,
			"remaining_qty": remaining,
			"realized_pnl":  realized,
		}
		if orderID != nil {
			detail["order_id"] = *orderID
		}
		event := &entity.PositionEvent{
			PositionID:     &positionID,
			EventType:      eventType,
			Action:         entity.ActionExecuted,
			ReasonCode:     reasonCode,
			Detail:         detailJSON(detail),
			IdempotencyKey: &idempotencyKey,
		}
		recorded, replayed, err := l.appendEvent(ctx, eventRepo, event)
		if err != nil {
			return err
		}
		if replayed {
			replayedResult, err := l.replayedResult(ctx, posRepo, recorded)
			if err != nil {
				return err
			}
			result = replayedResult
			return nil
		}

		position, err = posRepo.FindByID(ctx, positionID)
		if err != nil {
			return err
		}
		result = &LedgerResult{
			Position:    position,
			Event:       recorded,
			RealizedPnl: realized,
			Closed:      remaining <= 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Block records a blocked decision without creating or mutating a position.
// Keyed by the signal so duplicate blocks for the same signal replay the
// original event.
func (l *positionLedger) Block(ctx context.Context, signalID *uint, positionID *uint, ticker, reasonCode, idempotencyKey string) (*LedgerResult, error) {
	var result *LedgerResult
	err := l.txm.Do(ctx, func(tx *gorm.DB) error {
		posRepo := l.posRepo.WithTx(tx)
		eventRepo := l.eventRepo.WithTx(tx)

		if existing, err := eventRepo.FindByIdempotencyKey(ctx, idempotencyKey); err != nil {
			return err
		} else if existing != nil {
			replayed, err := l.replayedResult(ctx, posRepo, existing)
			if err != nil {
				return err
			}
			result = replayed
			return nil
		}

		detail := map[string]interface{}{"ticker": ticker}
		if signalID != nil {
			detail["signal_id"] = *signalID
		}
		event := &entity.PositionEvent{
			PositionID:     positionID,
			EventType:      entity.EventBlock,
			Action:         entity.ActionBlocked,
			ReasonCode:     reasonCode,
			Detail:         detailJSON(detail),
			IdempotencyKey: &idempotencyKey,
		}
		recorded, replayed, err := l.appendEvent(ctx, eventRepo, event)
		if err != nil {
			return err
		}
		result = &LedgerResult{Event: recorded, Replayed: replayed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
