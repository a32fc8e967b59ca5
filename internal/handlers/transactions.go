package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/aggregation"
	"example.com/smartwealth/backend/internal/auth"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/notifications"
	"example.com/smartwealth/backend/internal/repository"
)

type TransactionHandler struct {
	Transactions *repository.TransactionRepository
	Notifier     *notifications.Hub
}

// NewTransactionHandler создает обработчик транзакций.
func NewTransactionHandler(transactions *repository.TransactionRepository, notifier *notifications.Hub) *TransactionHandler {
	return &TransactionHandler{Transactions: transactions, Notifier: notifier}
}

type TransactionRequest struct {
	Category    string          `json:"category" validate:"max=100"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Date        string          `json:"date" validate:"required"`
	Description *string         `json:"description" validate:"omitempty,max=500"`
}

type TransactionResponse struct {
	ID          uuid.UUID            `json:"id"`
	Category    string               `json:"category"`
	Amount      decimal.Decimal      `json:"amount"`
	Date        string               `json:"date"`
	Description *string              `json:"description,omitempty"`
	Source      models.ExpenseSource `json:"source"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// List возвращает транзакции пользователя за месяц.
func (h *TransactionHandler) List(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	month, ok := monthParam(c)
	if !ok {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	from, to, err := aggregation.MonthWindow(month)
	if err != nil {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	transactions, err := h.Transactions.ListInRange(c.Request().Context(), userID, from, to)
	if err != nil {
		return serverError(c)
	}

	response := make([]TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		response = append(response, toTransactionResponse(tx))
	}

	return c.JSON(http.StatusOK, map[string][]TransactionResponse{"transactions": response})
}

// Get возвращает одну транзакцию пользователя.
func (h *TransactionHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	tx, err := h.Transactions.GetByID(c.Request().Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "transaction not found")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, toTransactionResponse(tx))
}

// Create добавляет транзакцию, введенную вручную.
func (h *TransactionHandler) Create(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	if !req.Amount.IsPositive() {
		return badRequest(c, "amount must be greater than 0")
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return badRequest(c, "date must be in YYYY-MM-DD format")
	}

	tx, err := h.Transactions.Create(c.Request().Context(), userID, strings.TrimSpace(req.Category), req.Amount, date, req.Description, models.ExpenseSourceManual)
	if err != nil {
		return serverError(c)
	}

	publishExpenseAdded(h.Notifier, userID, "transactions", tx.Category, tx.Date)
	return c.JSON(http.StatusCreated, toTransactionResponse(tx))
}

// Update изменяет транзакцию.
func (h *TransactionHandler) Update(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	var req TransactionRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err = c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	if !req.Amount.IsPositive() {
		return badRequest(c, "amount must be greater than 0")
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return badRequest(c, "date must be in YYYY-MM-DD format")
	}

	tx, err := h.Transactions.Update(c.Request().Context(), userID, id, strings.TrimSpace(req.Category), req.Amount, date, req.Description)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "transaction not found")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, toTransactionResponse(tx))
}

// Delete удаляет транзакцию.
func (h *TransactionHandler) Delete(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}

	if err := h.Transactions.Delete(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "transaction not found")
		}
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// ExportCSV выгружает транзакции месяца в CSV-файл.
func (h *TransactionHandler) ExportCSV(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	month, ok := monthParam(c)
	if !ok {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	from, to, err := aggregation.MonthWindow(month)
	if err != nil {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	transactions, err := h.Transactions.ListInRange(c.Request().Context(), userID, from, to)
	if err != nil {
		return serverError(c)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"id", "category", "amount", "date", "description", "source"}
	if err := writer.Write(header); err != nil {
		return serverError(c)
	}

	for _, tx := range transactions {
		description := ""
		if tx.Description != nil {
			description = *tx.Description
		}
		record := []string{
			tx.ID.String(),
			tx.Category,
			tx.Amount.StringFixed(2),
			tx.Date.Format(dateLayout),
			description,
			string(tx.Source),
		}
		if err := writer.Write(record); err != nil {
			return serverError(c)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return serverError(c)
	}

	filename := "transactions-" + month + ".csv"
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func toTransactionResponse(tx models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		Category:    tx.Category,
		Amount:      tx.Amount,
		Date:        tx.Date.Format(dateLayout),
		Description: tx.Description,
		Source:      tx.Source,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}
