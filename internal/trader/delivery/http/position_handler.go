package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"golang-stock-trader/internal/trader/dto"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// PositionHandler handles HTTP requests for positions and their event logs.
type PositionHandler struct {
	posRepo   repository.PositionRepository
	eventRepo repository.PositionEventRepository
	logger    *logger.Logger
}

// NewPositionHandler creates a new PositionHandler.
func NewPositionHandler(posRepo repository.PositionRepository, eventRepo repository.PositionEventRepository, log *logger.Logger) *PositionHandler {
	return &PositionHandler{posRepo: posRepo, eventRepo: eventRepo, logger: log}
}

// RegisterRoutes registers the position routes to the Echo group.
func (h *PositionHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetPositions)
	g.GET("/:id", h.GetPositionByID)
	g.GET("/:id/events", h.GetPositionEvents)
}

// GetPositions lists positions, filterable by ticker and status.
func (h *PositionHandler) GetPositions(c echo.Context) error {
	param := dto.GetPositionsParam{
		Ticker: c.QueryParam("ticker"),
	}
	if statuses := c.QueryParam("status"); statuses != "" {
		param.Statuses = strings.Split(statuses, ",")
	}

	positions, err := h.posRepo.Get(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to list positions", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, positions)
}

// GetPositionByID returns a single position.
func (h *PositionHandler) GetPositionByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid position ID"})
	}

	position, err := h.posRepo.FindByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Position not found"})
		}
		h.logger.Error("Failed to load position", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, position)
}

// GetPositionEvents returns the append-only event log of a position.
func (h *PositionHandler) GetPositionEvents(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid position ID"})
	}

	events, err := h.eventRepo.ListByPosition(c.Request().Context(), uint(id))
	if err != nil {
		h.logger.Error("Failed to list position events", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, events)
}
