package http

import (
	"errors"
	"net/http"
	"time"

	"golang-stock-trader/internal/trader/dto"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/utils"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RiskHandler exposes the per-date risk state and the parameter registry.
type RiskHandler struct {
	riskRepo repository.RiskStateRepository
	registry repository.ParameterRegistryRepository
	logger   *logger.Logger
}

// NewRiskHandler creates a new RiskHandler.
func NewRiskHandler(riskRepo repository.RiskStateRepository, registry repository.ParameterRegistryRepository, log *logger.Logger) *RiskHandler {
	return &RiskHandler{riskRepo: riskRepo, registry: registry, logger: log}
}

// RegisterRoutes registers the risk and parameter routes to the Echo group.
func (h *RiskHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/risk-state/:date", h.GetRiskState)
	api.GET("/parameters", h.ListParameters)
	api.GET("/parameters/:name", h.GetParameter)
}

// GetRiskState returns the risk aggregate for one trade date.
func (h *RiskHandler) GetRiskState(c echo.Context) error {
	tradeDate := c.Param("date")
	if _, err := time.Parse(utils.TradeDateLayout, tradeDate); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid trade date, expected YYYY-MM-DD"})
	}

	state, err := h.riskRepo.Get(c.Request().Context(), tradeDate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "No risk state for date"})
		}
		h.logger.Error("Failed to load risk state", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, state)
}

// ListParameters returns the full parameter registry.
func (h *RiskHandler) ListParameters(c echo.Context) error {
	params, err := h.registry.List(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list parameters", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, params)
}

// GetParameter returns one parameter value by name.
func (h *RiskHandler) GetParameter(c echo.Context) error {
	name := c.Param("name")
	value, err := h.registry.Get(c.Request().Context(), name)
	if err != nil {
		if errors.Is(err, repository.ErrParameterNotFound) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Parameter not found"})
		}
		h.logger.Error("Failed to load parameter", logger.ErrorField(err), logger.Field("name", name))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"name": name, "value": value})
}
