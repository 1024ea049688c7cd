package broker

import (
	"context"
	"testing"
	"time"

	"golang-stock-trader/internal/entity"
)

func TestPaperBrokerFillsAtExpectedPrice(t *testing.T) {
	brk := NewPaperBroker(time.Millisecond)
	expected := 71500.0

	result, err := brk.SubmitOrder(context.Background(), OrderRequest{
		Ticker:        "005930",
		Side:          entity.SideBuy,
		Qty:           10,
		OrderType:     entity.OrderTypeMarket,
		ExpectedPrice: &expected,
		ClientOrderID: "c-1",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Status != entity.OrderFilled {
		t.Fatalf("status=%s want FILLED", result.Status)
	}
	if result.FilledQty != 10 || result.AvgPrice != 71500 {
		t.Fatalf("fill=%g@%g want 10@71500", result.FilledQty, result.AvgPrice)
	}
	if result.BrokerOrderID != "paper-c-1" {
		t.Fatalf("broker_order_id=%s want paper-c-1", result.BrokerOrderID)
	}
}

func TestPaperBrokerDefaultPrice(t *testing.T) {
	brk := NewPaperBroker(time.Millisecond)

	result, err := brk.SubmitOrder(context.Background(), OrderRequest{
		Ticker:        "005930",
		Side:          entity.SideSell,
		Qty:           1,
		ClientOrderID: "c-2",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.AvgPrice != paperDefaultPrice {
		t.Fatalf("price=%g want default %g", result.AvgPrice, paperDefaultPrice)
	}
}

func TestPaperBrokerHonorsContext(t *testing.T) {
	brk := NewPaperBroker(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := brk.SubmitOrder(ctx, OrderRequest{Ticker: "005930", Qty: 1, ClientOrderID: "c-3"})
	if err == nil {
		t.Fatal("expected a context error")
	}
}
