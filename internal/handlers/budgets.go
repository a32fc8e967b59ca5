package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/auth"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/notifications"
	"example.com/smartwealth/backend/internal/repository"
)

// BudgetStore — операции репозитория бюджетов, нужные обработчику.
type BudgetStore interface {
	Create(ctx context.Context, userID uuid.UUID, category string, amount decimal.Decimal, month string, alertThreshold *int) (models.Budget, error)
	Update(ctx context.Context, userID, id uuid.UUID, category string, amount decimal.Decimal, alertThreshold *int) (models.Budget, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (models.Budget, error)
	ListByMonth(ctx context.Context, userID uuid.UUID, month string) ([]models.Budget, error)
}

type BudgetHandler struct {
	Budgets  BudgetStore
	Alerts   AlertChecker
	Notifier *notifications.Hub
}

// NewBudgetHandler создает обработчик бюджетов по категориям.
func NewBudgetHandler(budgets BudgetStore, alerts AlertChecker, notifier *notifications.Hub) *BudgetHandler {
	return &BudgetHandler{Budgets: budgets, Alerts: alerts, Notifier: notifier}
}

type BudgetRequest struct {
	Category       string          `json:"category" validate:"required,max=100"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Month          string          `json:"month"`
	AlertThreshold *int            `json:"alert_threshold" validate:"omitempty,min=1,max=100"`
}

type BudgetResponse struct {
	ID             uuid.UUID       `json:"id"`
	Category       string          `json:"category"`
	Amount         decimal.Decimal `json:"amount"`
	Month          string          `json:"month"`
	AlertThreshold *int            `json:"alert_threshold,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// List возвращает бюджеты пользователя за месяц.
func (h *BudgetHandler) List(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	month, ok := monthParam(c)
	if !ok {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	budgets, err := h.Budgets.ListByMonth(c.Request().Context(), userID, month)
	if err != nil {
		return serverError(c)
	}

	response := make([]BudgetResponse, 0, len(budgets))
	for _, budget := range budgets {
		response = append(response, toBudgetResponse(budget))
	}

	return c.JSON(http.StatusOK, map[string][]BudgetResponse{"budgets": response})
}

// Get возвращает один бюджет пользователя.
func (h *BudgetHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid budget id")
	}

	budget, err := h.Budgets.GetByID(c.Request().Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "budget not found")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, toBudgetResponse(budget))
}

// Create добавляет бюджет категории на месяц. Категории, совпадающие после
// нормализации, считаются одной, повтор отдается как конфликт.
func (h *BudgetHandler) Create(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req BudgetRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	if req.Amount.IsNegative() {
		return badRequest(c, "amount must not be negative")
	}

	month := strings.TrimSpace(req.Month)
	if month == "" {
		month = time.Now().UTC().Format(monthLayout)
	} else if _, err := time.Parse(monthLayout, month); err != nil {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	budget, err := h.Budgets.Create(c.Request().Context(), userID, strings.TrimSpace(req.Category), req.Amount, month, req.AlertThreshold)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflict(c, "budget for this category already exists")
		}
		return serverError(c)
	}

	publishBudgetUpdated(h.Notifier, userID, budget)
	h.checkAlert(c, userID, budget)
	return c.JSON(http.StatusCreated, toBudgetResponse(budget))
}

// Update изменяет бюджет категории.
func (h *BudgetHandler) Update(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid budget id")
	}

	var req BudgetRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err = c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	if req.Amount.IsNegative() {
		return badRequest(c, "amount must not be negative")
	}

	budget, err := h.Budgets.Update(c.Request().Context(), userID, id, strings.TrimSpace(req.Category), req.Amount, req.AlertThreshold)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "budget not found")
		}
		if errors.Is(err, repository.ErrConflict) {
			return conflict(c, "budget for this category already exists")
		}
		return serverError(c)
	}

	publishBudgetUpdated(h.Notifier, userID, budget)
	h.checkAlert(c, userID, budget)
	return c.JSON(http.StatusOK, toBudgetResponse(budget))
}

// Delete удаляет бюджет категории.
func (h *BudgetHandler) Delete(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid budget id")
	}

	if err := h.Budgets.Delete(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "budget not found")
		}
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// checkAlert сверяет траты с новым бюджетом сразу после записи. Бюджет,
// заведенный посреди месяца, может быть превышен уже существующими тратами,
// ждать следующего расхода для оповещения нельзя. Сбой проверки запись не
// откатывает.
func (h *BudgetHandler) checkAlert(c echo.Context, userID uuid.UUID, budget models.Budget) {
	if h.Alerts == nil {
		return
	}

	if _, err := h.Alerts.CheckAndAlert(c.Request().Context(), userID, budget.Category, budget.Month); err != nil {
		c.Logger().Errorf("budget alert check failed: %v", err)
	}
}

func toBudgetResponse(budget models.Budget) BudgetResponse {
	return BudgetResponse{
		ID:             budget.ID,
		Category:       budget.Category,
		Amount:         budget.Amount,
		Month:          budget.Month,
		AlertThreshold: budget.AlertThreshold,
		CreatedAt:      budget.CreatedAt,
		UpdatedAt:      budget.UpdatedAt,
	}
}
