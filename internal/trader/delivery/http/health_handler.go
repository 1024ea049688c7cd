package http

import (
	"net/http"

	"golang-stock-trader/internal/trader/broker"
	"golang-stock-trader/internal/trader/dto"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports service liveness and broker connectivity.
type HealthHandler struct {
	broker broker.Broker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(brk broker.Broker) *HealthHandler {
	return &HealthHandler{broker: brk}
}

// RegisterRoutes registers the health route to the Echo group.
func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.GetHealth)
}

// GetHealth returns OK when the broker is reachable; degraded broker health
// degrades the service status but still returns 200 so orchestrators do not
// restart a service that can drain its queues.
func (h *HealthHandler) GetHealth(c echo.Context) error {
	health := h.broker.HealthCheck(c.Request().Context())

	resp := dto.HealthResponse{
		Status: string(health.Status),
		Broker: dto.BrokerHealth{
			Status:     string(health.Status),
			ReasonCode: health.ReasonCode,
		},
		Checks: health.Checks,
	}

	code := http.StatusOK
	if health.Status == broker.HealthCritical {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}
