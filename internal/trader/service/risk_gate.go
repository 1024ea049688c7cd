package service

import (
	"context"
	"sync"
	"time"

	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/logger"

	"gorm.io/gorm"
)

// Risk-block reason codes.
const (
	ReasonTradingDisabled = "TRADING_DISABLED"
	ReasonCooldownActive  = "COOLDOWN_ACTIVE"
	ReasonDailyLossLimit  = "DAILY_LOSS_LIMIT"
)

// RiskDecision is the result of a risk-gate evaluation. A block is a normal
// business outcome, not an error.
type RiskDecision struct {
	Allowed    bool
	ReasonCode string
}

// RiskGate decides whether a candidate signal may trade on a given date and
// accumulates realized outcomes into the per-date risk state.
type RiskGate interface {
	Evaluate(ctx context.Context, ticker, tradeDate string, proposedNotional float64) (RiskDecision, error)
	RecordOutcome(ctx context.Context, tradeDate string, realizedDelta, unrealizedDelta float64, isLoss bool, params *TradingParams) error
}

type riskGate struct {
	txm      repository.TxManager
	riskRepo repository.RiskStateRepository
	logger   *logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	dateLocks map[string]*sync.Mutex
}

// NewRiskGate creates a new RiskGate.
func NewRiskGate(txm repository.TxManager, riskRepo repository.RiskStateRepository, log *logger.Logger) RiskGate {
	return &riskGate{
		txm:       txm,
		riskRepo:  riskRepo,
		logger:    log,
		now:       time.Now,
		dateLocks: make(map[string]*sync.Mutex),
	}
}

func (g *riskGate) lockFor(tradeDate string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.dateLocks[tradeDate]
	if !ok {
		lock = &sync.Mutex{}
		g.dateLocks[tradeDate] = lock
	}
	return lock
}

// Evaluate loads (lazily creating) the date's risk state and applies the
// unconditional block checks. The loss-limit flag takes precedence so a
// limit-triggered disable keeps reporting DAILY_LOSS_LIMIT for the rest of
// the date.
func (g *riskGate) Evaluate(ctx context.Context, ticker, tradeDate string, proposedNotional float64) (RiskDecision, error) {
	state, err := g.riskRepo.GetOrCreate(ctx, tradeDate)
	if err != nil {
		return RiskDecision{}, err
	}

	switch {
	case state.DailyLossLimitHit:
		return RiskDecision{ReasonCode: ReasonDailyLossLimit}, nil
	case !state.TradingEnabled:
		return RiskDecision{ReasonCode: ReasonTradingDisabled}, nil
	case state.CooldownUntil != nil && g.now().Before(*state.CooldownUntil):
		return RiskDecision{ReasonCode: ReasonCooldownActive}, nil
	}

	return RiskDecision{Allowed: true}, nil
}

// RecordOutcome atomically folds a trade outcome into the date's state.
// Serialized per date with an in-process lock plus a row lock, so two
// simultaneous signals cannot both pass the gate on a stale PnL snapshot.
func (g *riskGate) RecordOutcome(ctx context.Context, tradeDate string, realizedDelta, unrealizedDelta float64, isLoss bool, params *TradingParams) error {
	lock := g.lockFor(tradeDate)
	lock.Lock()
	defer lock.Unlock()

	if _, err := g.riskRepo.GetOrCreate(ctx, tradeDate); err != nil {
		return err
	}

	return g.txm.Do(ctx, func(tx *gorm.DB) error {
		repo := g.riskRepo.WithTx(tx)

		state, err := repo.GetForUpdate(ctx, tradeDate)
		if err != nil {
			return err
		}

		state.DailyRealizedPnl += realizedDelta
		state.DailyUnrealizedPnl += unrealizedDelta

		if isLoss {
			state.ConsecutiveLosses++
		} else {
			state.ConsecutiveLosses = 0
		}

		if params.DailyLossLimit > 0 && state.DailyRealizedPnl <= -params.DailyLossLimit && !state.DailyLossLimitHit {
			state.DailyLossLimitHit = true
			state.TradingEnabled = false
			g.logger.Warn("Daily loss limit hit, trading disabled",
				logger.Field("trade_date", tradeDate),
				logger.Field("daily_realized_pnl", state.DailyRealizedPnl))
		}

		if params.MaxConsecutiveLosses > 0 && state.ConsecutiveLosses > params.MaxConsecutiveLosses {
			cooldownUntil := g.now().Add(params.CooldownDuration)
			state.CooldownUntil = &cooldownUntil
			g.logger.Warn("Consecutive-loss cooldown engaged",
				logger.Field("trade_date", tradeDate),
				logger.IntField("consecutive_losses", state.ConsecutiveLosses),
				logger.Field("cooldown_until", cooldownUntil))
		}

		return repo.Save(ctx, state)
	})
}
