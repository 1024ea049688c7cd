package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/broker"
	"golang-stock-trader/internal/trader/dto"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func testLogger(t interface{ Fatalf(string, ...interface{}) }) *logger.Logger {
	log, err := logger.New("error", "console")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

type fakeTxManager struct{}

func (fakeTxManager) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePositionRepo struct {
	mu        sync.Mutex
	nextID    uint
	positions map[uint]*entity.Position
}

func newFakePositionRepo() *fakePositionRepo {
	return &fakePositionRepo{nextID: 1, positions: make(map[uint]*entity.Position)}
}

func (r *fakePositionRepo) WithTx(tx *gorm.DB) repository.PositionRepository { return r }

func (r *fakePositionRepo) Create(ctx context.Context, position *entity.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	position.ID = r.nextID
	r.nextID++
	if position.OpenedAt.IsZero() {
		position.OpenedAt = time.Now()
	}
	stored := *position
	r.positions[position.ID] = &stored
	return nil
}

func (r *fakePositionRepo) FindByID(ctx context.Context, id uint) (*entity.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	position, ok := r.positions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *position
	return &copied, nil
}

func (r *fakePositionRepo) FindByIDForUpdate(ctx context.Context, id uint) (*entity.Position, error) {
	return r.FindByID(ctx, id)
}

func (r *fakePositionRepo) FindOpenByTicker(ctx context.Context, ticker string) ([]entity.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Position
	for _, position := range r.positions {
		if position.Ticker != ticker {
			continue
		}
		if position.Status == entity.PositionOpen || position.Status == entity.PositionPendingEntry {
			out = append(out, *position)
		}
	}
	return out, nil
}

func (r *fakePositionRepo) FindOpenOlderThan(ctx context.Context, days int) ([]entity.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -days)
	var out []entity.Position
	for _, position := range r.positions {
		if position.Status == entity.PositionOpen && position.OpenedAt.Before(cutoff) {
			out = append(out, *position)
		}
	}
	return out, nil
}

func (r *fakePositionRepo) Get(ctx context.Context, param dto.GetPositionsParam) ([]entity.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Position
	for _, position := range r.positions {
		if param.Ticker != "" && position.Ticker != param.Ticker {
			continue
		}
		out = append(out, *position)
	}
	return out, nil
}

func (r *fakePositionRepo) UpdateTransition(ctx context.Context, id uint, from []entity.PositionStatus, updates map[string]interface{}) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	position, ok := r.positions[id]
	if !ok {
		return 0, nil
	}
	matched := false
	for _, status := range from {
		if position.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return 0, nil
	}
	for column, value := range updates {
		switch column {
		case "status":
			position.Status = value.(entity.PositionStatus)
		case "qty":
			position.Qty = value.(float64)
		case "avg_entry_price":
			position.AvgEntryPrice = value.(float64)
		case "opened_value":
			position.OpenedValue = value.(float64)
		case "closed_at":
			position.ClosedAt = value.(*time.Time)
		case "exit_reason_code":
			position.ExitReasonCode = value.(string)
		default:
			return 0, fmt.Errorf("unexpected update column %s", column)
		}
	}
	return 1, nil
}

type fakePositionEventRepo struct {
	mu     sync.Mutex
	nextID uint
	events []*entity.PositionEvent
	byKey  map[string]*entity.PositionEvent
}

func newFakePositionEventRepo() *fakePositionEventRepo {
	return &fakePositionEventRepo{nextID: 1, byKey: make(map[string]*entity.PositionEvent)}
}

func (r *fakePositionEventRepo) WithTx(tx *gorm.DB) repository.PositionEventRepository { return r }

func (r *fakePositionEventRepo) Create(ctx context.Context, event *entity.PositionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.IdempotencyKey != nil {
		if _, exists := r.byKey[*event.IdempotencyKey]; exists {
			return repository.ErrDuplicateIdempotencyKey
		}
	}
	event.ID = r.nextID
	r.nextID++
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}
	stored := *event
	r.events = append(r.events, &stored)
	if event.IdempotencyKey != nil {
		r.byKey[*event.IdempotencyKey] = &stored
	}
	return nil
}

func (r *fakePositionEventRepo) FindByIdempotencyKey(ctx context.Context, key string) (*entity.PositionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	copied := *event
	return &copied, nil
}

func (r *fakePositionEventRepo) ListByPosition(ctx context.Context, positionID uint) ([]entity.PositionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.PositionEvent
	for _, event := range r.events {
		if event.PositionID != nil && *event.PositionID == positionID {
			out = append(out, *event)
		}
	}
	return out, nil
}

type fakeRiskStateRepo struct {
	mu     sync.Mutex
	states map[string]*entity.RiskState
}

func newFakeRiskStateRepo() *fakeRiskStateRepo {
	return &fakeRiskStateRepo{states: make(map[string]*entity.RiskState)}
}

func (r *fakeRiskStateRepo) WithTx(tx *gorm.DB) repository.RiskStateRepository { return r }

func (r *fakeRiskStateRepo) GetOrCreate(ctx context.Context, tradeDate string) (*entity.RiskState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[tradeDate]
	if !ok {
		state = &entity.RiskState{TradeDate: tradeDate, TradingEnabled: true}
		r.states[tradeDate] = state
	}
	copied := *state
	return &copied, nil
}

func (r *fakeRiskStateRepo) GetForUpdate(ctx context.Context, tradeDate string) (*entity.RiskState, error) {
	return r.Get(ctx, tradeDate)
}

func (r *fakeRiskStateRepo) Get(ctx context.Context, tradeDate string) (*entity.RiskState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[tradeDate]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *state
	return &copied, nil
}

func (r *fakeRiskStateRepo) Save(ctx context.Context, state *entity.RiskState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *state
	r.states[state.TradeDate] = &stored
	return nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	nextID uint
	orders map[uint]*entity.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: make(map[uint]*entity.Order)}
}

func (r *fakeOrderRepo) WithTx(tx *gorm.DB) repository.OrderRepository { return r }

func (r *fakeOrderRepo) Create(ctx context.Context, order *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = r.nextID
	r.nextID++
	stored := *order
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) Save(ctx context.Context, order *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *order
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id uint) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *fakeOrderRepo) FindByBrokerOrderID(ctx context.Context, brokerOrderID string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.BrokerOrderID == brokerOrderID {
			copied := *order
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) FindByIdempotencyKey(ctx context.Context, key string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.Order
	for _, order := range r.orders {
		if order.IdempotencyKey == nil || *order.IdempotencyKey != key {
			continue
		}
		if latest == nil || order.ID > latest.ID {
			latest = order
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeOrderRepo) FindBySignal(ctx context.Context, signalID uint, side entity.OrderSide) ([]entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Order
	for _, order := range r.orders {
		if order.SignalID != nil && *order.SignalID == signalID && order.Side == side {
			out = append(out, *order)
		}
	}
	return out, nil
}

type fakeOrderFillRepo struct {
	mu     sync.Mutex
	nextID uint
	fills  []*entity.OrderFill
	seen   map[string]bool
}

func newFakeOrderFillRepo() *fakeOrderFillRepo {
	return &fakeOrderFillRepo{nextID: 1, seen: make(map[string]bool)}
}

func (r *fakeOrderFillRepo) WithTx(tx *gorm.DB) repository.OrderFillRepository { return r }

func (r *fakeOrderFillRepo) CreateIfNew(ctx context.Context, fill *entity.OrderFill) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%s:%d", fill.BrokerOrderID, fill.FillSeq)
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	fill.ID = r.nextID
	r.nextID++
	stored := *fill
	r.fills = append(r.fills, &stored)
	return true, nil
}

func (r *fakeOrderFillRepo) ListByOrder(ctx context.Context, orderID uint) ([]entity.OrderFill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.OrderFill
	for _, fill := range r.fills {
		if fill.OrderID == orderID {
			out = append(out, *fill)
		}
	}
	return out, nil
}

type fakeSignalRepo struct {
	mu      sync.Mutex
	nextID  uint
	signals map[uint]*entity.Signal
}

func newFakeSignalRepo() *fakeSignalRepo {
	return &fakeSignalRepo{nextID: 1, signals: make(map[uint]*entity.Signal)}
}

func (r *fakeSignalRepo) Create(ctx context.Context, signal *entity.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	signal.ID = r.nextID
	r.nextID++
	stored := *signal
	r.signals[signal.ID] = &stored
	return nil
}

func (r *fakeSignalRepo) FindByID(ctx context.Context, id uint) (*entity.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	signal, ok := r.signals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *signal
	return &copied, nil
}

type fakeRegistry struct {
	values map[string]string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{values: map[string]string{
		ParamDailyLossLimit:       "1000",
		ParamMaxConsecutiveLosses: "3",
		ParamCooldownDurationSec:  "3600",
	}}
}

func (r *fakeRegistry) Get(ctx context.Context, name string) (datatypes.JSON, error) {
	raw, ok := r.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrParameterNotFound, name)
	}
	return datatypes.JSON([]byte(raw)), nil
}

func (r *fakeRegistry) List(ctx context.Context) ([]entity.Parameter, error) {
	var out []entity.Parameter
	for name, raw := range r.values {
		out = append(out, entity.Parameter{Name: name, Value: datatypes.JSON([]byte(raw))})
	}
	return out, nil
}

// scriptedBroker returns its queued responses in order and keeps returning
// the last one once drained.
type scriptedBroker struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     int
	health    broker.Health
}

type scriptedResponse struct {
	result broker.OrderResult
	err    error
}

func (b *scriptedBroker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if len(b.responses) == 0 {
		return broker.OrderResult{}, broker.ErrBrokerUnavailable
	}
	resp := b.responses[0]
	if len(b.responses) > 1 {
		b.responses = b.responses[1:]
	}
	return resp.result, resp.err
}

func (b *scriptedBroker) HealthCheck(ctx context.Context) broker.Health {
	return b.health
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) SendMessage(text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}
