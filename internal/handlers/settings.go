package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/auth"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/repository"
)

type SettingsHandler struct {
	Settings *repository.SettingsRepository
}

// NewSettingsHandler создает обработчик месячных настроек.
func NewSettingsHandler(settings *repository.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{Settings: settings}
}

type MonthlySettingRequest struct {
	Month         string          `json:"month"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget" validate:"required"`
}

type MonthlySettingResponse struct {
	Month         string          `json:"month"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Get возвращает общий месячный бюджет. Если настройка не сохранялась,
// отдается ноль, а не 404.
func (h *SettingsHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	month, ok := monthParam(c)
	if !ok {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	setting, err := h.Settings.GetMonthly(c.Request().Context(), userID, month)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusOK, MonthlySettingResponse{
				Month:         month,
				MonthlyBudget: decimal.Zero,
			})
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, toSettingResponse(setting))
}

// Upsert сохраняет общий месячный бюджет.
func (h *SettingsHandler) Upsert(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req MonthlySettingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	if req.MonthlyBudget.IsNegative() {
		return badRequest(c, "monthly_budget must not be negative")
	}

	month := strings.TrimSpace(req.Month)
	if month == "" {
		month = time.Now().UTC().Format(monthLayout)
	} else if _, err := time.Parse(monthLayout, month); err != nil {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	setting, err := h.Settings.UpsertMonthly(c.Request().Context(), userID, month, req.MonthlyBudget)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, toSettingResponse(setting))
}

func toSettingResponse(setting models.MonthlySetting) MonthlySettingResponse {
	return MonthlySettingResponse{
		Month:         setting.Month,
		MonthlyBudget: setting.MonthlyBudget,
		UpdatedAt:     setting.UpdatedAt,
	}
}
