package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/smartwealth/backend/internal/aggregation"
	"example.com/smartwealth/backend/internal/alerts"
	"example.com/smartwealth/backend/internal/auth"
)

type SummaryHandler struct {
	Engine     *aggregation.Engine
	Dispatcher *alerts.Dispatcher
}

// NewSummaryHandler создает обработчик сводок по тратам.
func NewSummaryHandler(engine *aggregation.Engine, dispatcher *alerts.Dispatcher) *SummaryHandler {
	return &SummaryHandler{Engine: engine, Dispatcher: dispatcher}
}

// Get возвращает сводку трат по категориям за месяц.
func (h *SummaryHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	month, ok := monthParam(c)
	if !ok {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	summary, err := h.Engine.Aggregate(c.Request().Context(), userID, month)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, summary)
}

// Report возвращает месячный отчет со сравнением с прошлым месяцем.
func (h *SummaryHandler) Report(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	report, err := h.Engine.MonthlyReport(c.Request().Context(), userID, time.Now().UTC())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, report)
}

// SendReport отправляет месячный отчет на почту пользователя.
func (h *SummaryHandler) SendReport(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.Dispatcher.SendMonthlyReport(c.Request().Context(), userID); err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "sent"})
}
