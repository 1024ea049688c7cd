package service

import (
	"context"
	"testing"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/broker"
	"golang-stock-trader/pkg/utils"
)

type dispatcherFixture struct {
	dispatcher *orderDispatcher
	orderRepo  *fakeOrderRepo
	fillRepo   *fakeOrderFillRepo
	posRepo    *fakePositionRepo
	ledger     PositionLedger
	broker     *scriptedBroker
	slept      []time.Duration
}

func newDispatcherFixture(t *testing.T, brk *scriptedBroker) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		orderRepo: newFakeOrderRepo(),
		fillRepo:  newFakeOrderFillRepo(),
		posRepo:   newFakePositionRepo(),
		broker:    brk,
	}
	f.ledger = NewPositionLedger(fakeTxManager{}, f.posRepo, newFakePositionEventRepo(), testLogger(t))
	d := NewOrderDispatcher(fakeTxManager{}, f.orderRepo, f.fillRepo, f.posRepo, f.ledger, brk, testLogger(t)).(*orderDispatcher)
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		f.slept = append(f.slept, dur)
		return nil
	}
	f.dispatcher = d
	return f
}

func submitParams(signalID uint, positionID *uint, side entity.OrderSide) SubmitOrderParams {
	return SubmitOrderParams{
		PositionID: positionID,
		SignalID:   &signalID,
		Ticker:     "005930",
		Side:       side,
		Qty:        10,
		OrderType:  entity.OrderTypeMarket,
		Params: &TradingParams{
			MaxAttemptsPerSignal: 2,
			MinRetryInterval:     30 * time.Second,
		},
	}
}

func TestSubmitFilled(t *testing.T) {
	brk := &scriptedBroker{responses: []scriptedResponse{
		{result: broker.OrderResult{Status: entity.OrderFilled, BrokerOrderID: "b-1", FilledQty: 10, AvgPrice: 70000}},
	}}
	f := newDispatcherFixture(t, brk)

	order, result, err := f.dispatcher.Submit(context.Background(), submitParams(1, nil, entity.SideBuy))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Status != entity.OrderFilled {
		t.Fatalf("result status=%s want FILLED", result.Status)
	}
	if order.Status != entity.OrderFilled || order.BrokerOrderID != "b-1" {
		t.Fatalf("order=%+v want FILLED with broker id b-1", order)
	}
	if order.FilledAt == nil || order.SentAt == nil {
		t.Fatal("sent_at and filled_at must be set")
	}
	if brk.calls != 1 {
		t.Fatalf("broker calls=%d want 1", brk.calls)
	}
}

func TestSubmitRetriesThenSucceeds(t *testing.T) {
	brk := &scriptedBroker{responses: []scriptedResponse{
		{err: broker.ErrBrokerUnavailable},
		{result: broker.OrderResult{Status: entity.OrderFilled, BrokerOrderID: "b-2", FilledQty: 10, AvgPrice: 70000}},
	}}
	f := newDispatcherFixture(t, brk)

	order, result, err := f.dispatcher.Submit(context.Background(), submitParams(2, nil, entity.SideBuy))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Status != entity.OrderFilled {
		t.Fatalf("result status=%s want FILLED", result.Status)
	}
	if order.AttemptNo != 2 {
		t.Fatalf("attempt_no=%d want 2", order.AttemptNo)
	}
	if len(f.slept) != 1 || f.slept[0] != 30*time.Second {
		t.Fatalf("slept=%v want one 30s wait between attempts", f.slept)
	}
}

func TestSubmitExhaustsAttempts(t *testing.T) {
	brk := &scriptedBroker{responses: []scriptedResponse{
		{err: broker.ErrBrokerUnavailable},
	}}
	f := newDispatcherFixture(t, brk)

	order, result, err := f.dispatcher.Submit(context.Background(), submitParams(3, nil, entity.SideBuy))
	if err != nil {
		t.Fatalf("Submit must not return an error on exhaustion: %v", err)
	}
	if result.Status != entity.OrderRejected || result.ReasonCode != "BROKER_UNAVAILABLE" {
		t.Fatalf("result=%+v want REJECTED/BROKER_UNAVAILABLE", result)
	}
	if order.Status != entity.OrderRejected {
		t.Fatalf("order status=%s want REJECTED", order.Status)
	}
	if brk.calls != 2 {
		t.Fatalf("broker calls=%d want the configured 2 attempts", brk.calls)
	}
}

func TestHandleFillDuplicateIsNoop(t *testing.T) {
	brk := &scriptedBroker{responses: []scriptedResponse{
		{result: broker.OrderResult{Status: entity.OrderSent, BrokerOrderID: "b-4"}},
	}}
	f := newDispatcherFixture(t, brk)
	ctx := context.Background()

	position, _ := f.ledger.CreatePending(ctx, 4, "005930", 10)
	if _, _, err := f.dispatcher.Submit(ctx, submitParams(4, utils.ToPointer(position.ID), entity.SideBuy)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	fill := FillNotification{BrokerOrderID: "b-4", FillSeq: 1, Qty: 10, Price: 70000}
	if err := f.dispatcher.HandleFill(ctx, fill); err != nil {
		t.Fatalf("HandleFill: %v", err)
	}
	if err := f.dispatcher.HandleFill(ctx, fill); err != nil {
		t.Fatalf("duplicate HandleFill: %v", err)
	}

	if len(f.fillRepo.fills) != 1 {
		t.Fatalf("fills=%d want 1", len(f.fillRepo.fills))
	}
	updated, err := f.posRepo.FindByID(ctx, position.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if updated.Status != entity.PositionOpen || updated.Qty != 10 {
		t.Fatalf("position=%+v want OPEN with qty 10 after one applied fill", updated)
	}
}

func TestHandleFillPartialThenComplete(t *testing.T) {
	brk := &scriptedBroker{responses: []scriptedResponse{
		{result: broker.OrderResult{Status: entity.OrderSent, BrokerOrderID: "b-5"}},
	}}
	f := newDispatcherFixture(t, brk)
	ctx := context.Background()

	position, _ := f.ledger.CreatePending(ctx, 5, "005930", 10)
	if _, _, err := f.dispatcher.Submit(ctx, submitParams(5, utils.ToPointer(position.ID), entity.SideBuy)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := f.dispatcher.HandleFill(ctx, FillNotification{BrokerOrderID: "b-5", FillSeq: 1, Qty: 4, Price: 70000}); err != nil {
		t.Fatalf("HandleFill: %v", err)
	}
	order, err := f.orderRepo.FindByBrokerOrderID(ctx, "b-5")
	if err != nil {
		t.Fatalf("FindByBrokerOrderID: %v", err)
	}
	if order.Status != entity.OrderPartialFilled {
		t.Fatalf("order status=%s want PARTIAL_FILLED", order.Status)
	}

	if err := f.dispatcher.HandleFill(ctx, FillNotification{BrokerOrderID: "b-5", FillSeq: 2, Qty: 6, Price: 70500}); err != nil {
		t.Fatalf("HandleFill: %v", err)
	}
	order, _ = f.orderRepo.FindByBrokerOrderID(ctx, "b-5")
	if order.Status != entity.OrderFilled {
		t.Fatalf("order status=%s want FILLED", order.Status)
	}

	// First fill confirms the pending entry, second one adds to it.
	updated, _ := f.posRepo.FindByID(ctx, position.ID)
	if updated.Status != entity.PositionOpen || updated.Qty != 10 {
		t.Fatalf("position=%+v want OPEN with qty 10", updated)
	}
}

func TestHandleFillIgnoresSynchronouslyFilledOrder(t *testing.T) {
	brk := &scriptedBroker{responses: []scriptedResponse{
		{result: broker.OrderResult{Status: entity.OrderFilled, BrokerOrderID: "b-6", FilledQty: 10, AvgPrice: 70000}},
	}}
	f := newDispatcherFixture(t, brk)
	ctx := context.Background()

	position, _ := f.ledger.CreatePending(ctx, 6, "005930", 10)
	if _, _, err := f.dispatcher.Submit(ctx, submitParams(6, utils.ToPointer(position.ID), entity.SideBuy)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.ledger.ConfirmEntry(ctx, position.ID, 1, 10, 70000, "entry:signal:6"); err != nil {
		t.Fatalf("ConfirmEntry: %v", err)
	}

	// Late broker callback for an order the synchronous path already
	// settled: the fill row lands for reconciliation but the ledger must
	// not be touched again.
	if err := f.dispatcher.HandleFill(ctx, FillNotification{BrokerOrderID: "b-6", FillSeq: 1, Qty: 10, Price: 70000}); err != nil {
		t.Fatalf("HandleFill: %v", err)
	}

	if len(f.fillRepo.fills) != 1 {
		t.Fatalf("fills=%d want 1", len(f.fillRepo.fills))
	}
	updated, _ := f.posRepo.FindByID(ctx, position.ID)
	if updated.Qty != 10 {
		t.Fatalf("qty=%g want 10, fill must not double-apply", updated.Qty)
	}
}
