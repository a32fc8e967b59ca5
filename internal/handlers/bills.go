package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/aggregation"
	"example.com/smartwealth/backend/internal/auth"
	"example.com/smartwealth/backend/internal/extraction"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/notifications"
	"example.com/smartwealth/backend/internal/repository"
)

// maxUploadBytes ограничивает чтение файла чека. Читаем на байт больше
// лимита пайплайна, чтобы превышение отклонил он, а не обрезка.
const maxUploadBytes = 5<<20 + 1

const defaultBillCategory = "Unknown"

type BillHandler struct {
	Bills    *repository.BillRepository
	Pipeline *extraction.Pipeline
	Notifier *notifications.Hub
}

// NewBillHandler создает обработчик счетов из чеков.
func NewBillHandler(bills *repository.BillRepository, pipeline *extraction.Pipeline, notifier *notifications.Hub) *BillHandler {
	return &BillHandler{Bills: bills, Pipeline: pipeline, Notifier: notifier}
}

type BillRequest struct {
	Category string          `json:"category" validate:"max=100"`
	Total    decimal.Decimal `json:"total" validate:"required"`
	Date     string          `json:"date"`
}

type BillResponse struct {
	ID        uuid.UUID            `json:"id"`
	Category  string               `json:"category"`
	Total     decimal.Decimal      `json:"total"`
	Date      string               `json:"date"`
	Source    models.ExpenseSource `json:"source"`
	CreatedAt time.Time            `json:"created_at"`
}

type ExtractResponse struct {
	Category string          `json:"category"`
	Date     string          `json:"date"`
	Total    decimal.Decimal `json:"total"`
}

// Extract распознает чек и возвращает извлеченные поля без сохранения.
// Пользователь подтверждает результат отдельным запросом на создание счета.
func (h *BillHandler) Extract(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return serverError(c)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes))
	if err != nil {
		return serverError(c)
	}

	upload := extraction.Upload{
		Filename: fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}

	receipt, err := h.Pipeline.Extract(c.Request().Context(), upload)
	if err != nil {
		var validationErr *extraction.ValidationError
		if errors.As(err, &validationErr) {
			return badRequest(c, validationErr.Error())
		}

		var configErr *extraction.ConfigError
		if errors.As(err, &configErr) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "receipt extraction is not configured"})
		}

		return c.JSON(http.StatusBadGateway, map[string]string{"error": "receipt extraction failed"})
	}

	return c.JSON(http.StatusOK, ExtractResponse{
		Category: receipt.Category,
		Date:     receipt.Date,
		Total:    receipt.Total,
	})
}

// Create сохраняет счет. Пустые категория и дата заменяются значениями по
// умолчанию, поскольку извлечение может их не распознать.
func (h *BillHandler) Create(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req BillRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	if !req.Total.IsPositive() {
		return badRequest(c, "total must be greater than 0")
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = defaultBillCategory
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if trimmed := strings.TrimSpace(req.Date); trimmed != "" {
		parsed, err := time.Parse(dateLayout, trimmed)
		if err != nil {
			return badRequest(c, "date must be in YYYY-MM-DD format")
		}
		date = parsed
	}

	bill, err := h.Bills.Create(c.Request().Context(), userID, category, req.Total, date, models.ExpenseSourceReceipt)
	if err != nil {
		return serverError(c)
	}

	publishExpenseAdded(h.Notifier, userID, "bills", bill.Category, bill.Date)
	return c.JSON(http.StatusCreated, toBillResponse(bill))
}

// List возвращает счета пользователя за месяц.
func (h *BillHandler) List(c echo.Context) error {
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

	bills, err := h.Bills.ListInRange(c.Request().Context(), userID, from, to)
	if err != nil {
		return serverError(c)
	}

	response := make([]BillResponse, 0, len(bills))
	for _, bill := range bills {
		response = append(response, toBillResponse(bill))
	}

	return c.JSON(http.StatusOK, map[string][]BillResponse{"bills": response})
}

// Get возвращает один счет пользователя.
func (h *BillHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid bill id")
	}

	bill, err := h.Bills.GetByID(c.Request().Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "bill not found")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, toBillResponse(bill))
}

// Delete удаляет счет.
func (h *BillHandler) Delete(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid bill id")
	}

	if err := h.Bills.Delete(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "bill not found")
		}
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

func toBillResponse(bill models.Bill) BillResponse {
	return BillResponse{
		ID:        bill.ID,
		Category:  bill.Category,
		Total:     bill.Total,
		Date:      bill.Date.Format(dateLayout),
		Source:    bill.Source,
		CreatedAt: bill.CreatedAt,
	}
}
