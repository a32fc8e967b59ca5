package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/smartwealth/backend/internal/auth"
	"example.com/smartwealth/backend/internal/category"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/repository"
)

// AlertChecker запускает проверку бюджета категории за месяц.
type AlertChecker interface {
	CheckAndAlert(ctx context.Context, userID uuid.UUID, category, month string) (bool, error)
}

// AlertStateSource читает зафиксированное состояние оповещения.
type AlertStateSource interface {
	Get(ctx context.Context, userID uuid.UUID, category, month string) (models.AlertState, error)
}

type AlertHandler struct {
	Alerts AlertChecker
	States AlertStateSource
}

// NewAlertHandler создает обработчик принудительной проверки бюджета.
func NewAlertHandler(alerts AlertChecker, states AlertStateSource) *AlertHandler {
	return &AlertHandler{Alerts: alerts, States: states}
}

type SendAlertRequest struct {
	Category string `json:"category" validate:"required,max=100"`
	Month    string `json:"month"`
}

type SendAlertResponse struct {
	Sent bool `json:"sent"`
}

type AlertStateResponse struct {
	Category  string `json:"category"`
	Month     string `json:"month"`
	Threshold int    `json:"threshold"`
}

// Send запускает проверку бюджета категории вне очереди событий. Проверка
// идемпотентна: уже отработанный порог письма не дублирует.
func (h *AlertHandler) Send(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req SendAlertRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	month := strings.TrimSpace(req.Month)
	if month == "" {
		month = time.Now().UTC().Format(monthLayout)
	} else if _, err := time.Parse(monthLayout, month); err != nil {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	sent, err := h.Alerts.CheckAndAlert(c.Request().Context(), userID, req.Category, month)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, SendAlertResponse{Sent: sent})
}

// State возвращает последний зафиксированный порог оповещения по категории.
// Отсутствие записи означает, что порог еще не пересекался.
func (h *AlertHandler) State(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	cat := strings.TrimSpace(c.QueryParam("category"))
	if cat == "" {
		return badRequest(c, "category is required")
	}

	month, ok := monthParam(c)
	if !ok {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	bucket := category.Normalize(cat)
	state, err := h.States.Get(c.Request().Context(), userID, bucket, month)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusOK, AlertStateResponse{Category: bucket, Month: month})
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, AlertStateResponse{
		Category:  state.Category,
		Month:     state.Month,
		Threshold: int(state.LastThreshold),
	})
}
