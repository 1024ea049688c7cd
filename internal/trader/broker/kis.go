package broker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/config"
	"golang-stock-trader/pkg/logger"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	kisPaperBaseURL = "https://openapivts.koreainvestment.com:29443"
	kisLiveBaseURL  = "https://openapi.koreainvestment.com:9443"
)

// KISBroker routes orders to the Korea Investment & Securities REST API.
// Order acceptance (rt_cd == "0") is treated as a fill at the expected
// price; execution reconciliation arrives through the fill channel.
type KISBroker struct {
	cfg     config.KIS
	client  *resty.Client
	limiter *rate.Limiter
	logger  *logger.Logger

	mu    sync.Mutex
	token string
}

type kisTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type kisOrderResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		Odno string `json:"ODNO"`
	} `json:"output"`
}

// NewKISBroker creates a broker backed by the KIS open API.
func NewKISBroker(cfg config.KIS, log *logger.Logger) *KISBroker {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if strings.ToLower(cfg.Mode) == "paper" {
			baseURL = kisPaperBaseURL
		} else {
			baseURL = kisLiveBaseURL
		}
	}

	maxPerMinute := cfg.MaxRequestPerMinute
	if maxPerMinute <= 0 {
		maxPerMinute = 20
	}

	return &KISBroker{
		cfg:     cfg,
		client:  resty.New().SetBaseURL(baseURL),
		limiter: rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), maxPerMinute),
		logger:  log,
	}
}

func (b *KISBroker) splitAccount() (string, string) {
	raw := strings.TrimSpace(b.cfg.AccountNo)
	if cano, prod, ok := strings.Cut(raw, "-"); ok {
		prod = strings.TrimSpace(prod)
		if prod == "" {
			prod = b.cfg.ProductCode
		}
		return strings.TrimSpace(cano), prod
	}
	return raw, b.cfg.ProductCode
}

func (b *KISBroker) ensureToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.token != "" {
		return b.token, nil
	}
	if b.cfg.AppKey == "" || b.cfg.AppSecret == "" {
		return "", errors.New("KIS credentials missing")
	}

	var tokenResp kisTokenResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"grant_type": "client_credentials",
			"appkey":     b.cfg.AppKey,
			"appsecret":  b.cfg.AppSecret,
		}).
		SetResult(&tokenResp).
		Post("/oauth2/tokenP")
	if err != nil {
		return "", fmt.Errorf("%w: token issue: %v", ErrBrokerUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: token issue failed: HTTP %d", ErrBrokerUnavailable, resp.StatusCode())
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: token missing in response", ErrBrokerUnavailable)
	}

	b.token = tokenResp.AccessToken
	return b.token, nil
}

// trIDForOrder selects the KIS transaction id for a cash order by side and
// paper/live mode.
func (b *KISBroker) trIDForOrder(side entity.OrderSide) string {
	if strings.ToLower(b.cfg.Mode) == "paper" {
		if side == entity.SideBuy {
			return "VTTT0802U"
		}
		return "VTTT0801U"
	}
	if side == entity.SideBuy {
		return "TTTC0802U"
	}
	return "TTTC0801U"
}

func (b *KISBroker) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return OrderResult{}, err
	}

	token, err := b.ensureToken(ctx)
	if err != nil {
		return OrderResult{}, err
	}

	cano, prdt := b.splitAccount()
	if cano == "" {
		return OrderResult{}, errors.New("KIS account number missing")
	}

	// KIS cash orders are integer-quantity market orders (ORD_DVSN 01).
	qty := int(math.Round(req.Qty))
	if qty < 1 {
		qty = 1
	}

	var orderResp kisOrderResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"authorization": "Bearer " + token,
			"appkey":        b.cfg.AppKey,
			"appsecret":     b.cfg.AppSecret,
			"tr_id":         b.trIDForOrder(req.Side),
			"custtype":      "P",
			"content-type":  "application/json; charset=utf-8",
		}).
		SetBody(map[string]string{
			"CANO":         cano,
			"ACNT_PRDT_CD": prdt,
			"PDNO":         req.Ticker,
			"ORD_DVSN":     "01",
			"ORD_QTY":      fmt.Sprintf("%d", qty),
			"ORD_UNPR":     "0",
		}).
		SetResult(&orderResp).
		Post("/uapi/domestic-stock/v1/trading/order-cash")
	if err != nil {
		return OrderResult{}, fmt.Errorf("%w: order send: %v", ErrBrokerUnavailable, err)
	}
	if resp.IsError() {
		return OrderResult{}, fmt.Errorf("%w: order failed: HTTP %d", ErrBrokerUnavailable, resp.StatusCode())
	}

	if orderResp.RtCd != "0" {
		reason := orderResp.Msg1
		if reason == "" {
			reason = orderResp.MsgCd
		}
		if reason == "" {
			reason = "KIS_ORDER_REJECTED"
		}
		return OrderResult{
			Status:     entity.OrderRejected,
			ReasonCode: reason,
		}, nil
	}

	avgPrice := 0.0
	if req.ExpectedPrice != nil {
		avgPrice = *req.ExpectedPrice
	}

	reasonCode := "ORDER_ACCEPTED"
	if orderResp.Output.Odno != "" {
		reasonCode = "ORDER_ACCEPTED:" + orderResp.Output.Odno
	}

	return OrderResult{
		Status:        entity.OrderFilled,
		BrokerOrderID: orderResp.Output.Odno,
		FilledQty:     float64(qty),
		AvgPrice:      avgPrice,
		ReasonCode:    reasonCode,
	}, nil
}

func (b *KISBroker) HealthCheck(ctx context.Context) Health {
	hasKeys := b.cfg.AppKey != "" && b.cfg.AppSecret != ""
	hasAccount := strings.TrimSpace(b.cfg.AccountNo) != ""

	checks := map[string]string{
		"broker":       "kis",
		"mode":         b.cfg.Mode,
		"base_url":     b.client.BaseURL,
		"has_app_key":  fmt.Sprintf("%t", b.cfg.AppKey != ""),
		"has_account":  fmt.Sprintf("%t", hasAccount),
		"product_code": b.cfg.ProductCode,
	}

	switch {
	case hasKeys && hasAccount:
		return Health{Status: HealthOK, Checks: checks}
	case hasKeys:
		return Health{Status: HealthWarn, ReasonCode: "MISSING_ACCOUNT", Checks: checks}
	default:
		return Health{Status: HealthCritical, ReasonCode: "MISSING_CREDENTIALS", Checks: checks}
	}
}
