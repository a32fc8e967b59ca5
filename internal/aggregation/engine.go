package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/category"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/repository"
)

const monthLayout = "2006-01"

type TransactionSource interface {
	ListInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Transaction, error)
}

type BillSource interface {
	ListInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Bill, error)
}

type BudgetSource interface {
	ListByMonth(ctx context.Context, userID uuid.UUID, month string) ([]models.Budget, error)
}

type SettingsSource interface {
	GetMonthly(ctx context.Context, userID uuid.UUID, month string) (models.MonthlySetting, error)
}

// BudgetView — производное представление бюджета, никогда не сохраняется.
type BudgetView struct {
	BudgetID        uuid.UUID       `json:"budget_id"`
	DisplayCategory string          `json:"category"`
	Budget          decimal.Decimal `json:"budget"`
	Spent           decimal.Decimal `json:"spent"`
	Remaining       decimal.Decimal `json:"remaining"`
	Percentage      float64         `json:"percentage"`
	AlertThreshold  *int            `json:"alert_threshold,omitempty"`
}

type Summary struct {
	Month       string          `json:"month"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	PerCategory []BudgetView    `json:"per_category"`
}

// Engine пересчитывает траты по категориям за месяц из исходных записей.
// Движок ничего не пишет: каждый вызов — чистая функция от текущего
// состояния хранилища, поэтому его безопасно дергать на каждое событие.
type Engine struct {
	transactions TransactionSource
	bills        BillSource
	budgets      BudgetSource
	settings     SettingsSource
}

// NewEngine создает движок агрегации трат.
func NewEngine(transactions TransactionSource, bills BillSource, budgets BudgetSource, settings SettingsSource) *Engine {
	return &Engine{
		transactions: transactions,
		bills:        bills,
		budgets:      budgets,
		settings:     settings,
	}
}

// MonthWindow возвращает полуоткрытое окно [первое число месяца, первое число
// следующего месяца) для строки "YYYY-MM". Полуоткрытая верхняя граница
// включает весь последний день месяца независимо от гранулярности значения
// в колонке date.
func MonthWindow(month string) (time.Time, time.Time, error) {
	parsed, err := time.Parse(monthLayout, month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("month must be in YYYY-MM format: %w", err)
	}

	start := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Aggregate пересчитывает сводку трат пользователя за месяц.
func (e *Engine) Aggregate(ctx context.Context, userID uuid.UUID, month string) (Summary, error) {
	from, to, err := MonthWindow(month)
	if err != nil {
		return Summary{}, err
	}

	transactions, err := e.transactions.ListInRange(ctx, userID, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("load transactions: %w", err)
	}

	bills, err := e.bills.ListInRange(ctx, userID, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("load bills: %w", err)
	}

	budgets, err := e.budgets.ListByMonth(ctx, userID, month)
	if err != nil {
		return Summary{}, fmt.Errorf("load budgets: %w", err)
	}

	totalBudget := decimal.Zero
	setting, err := e.settings.GetMonthly(ctx, userID, month)
	switch {
	case err == nil:
		totalBudget = setting.MonthlyBudget
	case errors.Is(err, repository.ErrNotFound):
		// Отсутствие общего бюджета — не ошибка, totalBudget остается 0.
	default:
		return Summary{}, fmt.Errorf("load monthly setting: %w", err)
	}

	spentByBucket, totalSpent := mergeSpend(transactions, bills)

	views := make([]BudgetView, 0, len(budgets))
	for _, budget := range budgets {
		spent := spentByBucket[category.Normalize(budget.Category)]
		views = append(views, BudgetView{
			BudgetID:        budget.ID,
			DisplayCategory: category.Display(budget.Category),
			Budget:          budget.Amount,
			Spent:           spent,
			Remaining:       budget.Amount.Sub(spent),
			Percentage:      percentage(spent, budget.Amount),
			AlertThreshold:  budget.AlertThreshold,
		})
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].DisplayCategory < views[j].DisplayCategory
	})

	return Summary{
		Month:       month,
		TotalBudget: totalBudget,
		TotalSpent:  totalSpent,
		PerCategory: views,
	}, nil
}

// CategorySpend считает траты одной категории за месяц по тому же правилу
// слияния, что и Aggregate.
func (e *Engine) CategorySpend(ctx context.Context, userID uuid.UUID, month, cat string) (decimal.Decimal, error) {
	from, to, err := MonthWindow(month)
	if err != nil {
		return decimal.Zero, err
	}

	transactions, err := e.transactions.ListInRange(ctx, userID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load transactions: %w", err)
	}

	bills, err := e.bills.ListInRange(ctx, userID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load bills: %w", err)
	}

	bucket := category.Normalize(cat)
	spentByBucket, _ := mergeSpend(transactions, bills)
	return spentByBucket[bucket], nil
}

// mergeSpend сливает транзакции и счета в бакеты по нормализованной
// категории; Bill.Total и Transaction.Amount — одна и та же величина.
func mergeSpend(transactions []models.Transaction, bills []models.Bill) (map[string]decimal.Decimal, decimal.Decimal) {
	spent := make(map[string]decimal.Decimal)
	total := decimal.Zero

	for _, tx := range transactions {
		bucket := category.Normalize(tx.Category)
		spent[bucket] = spent[bucket].Add(tx.Amount)
		total = total.Add(tx.Amount)
	}

	for _, bill := range bills {
		bucket := category.Normalize(bill.Category)
		spent[bucket] = spent[bucket].Add(bill.Total)
		total = total.Add(bill.Total)
	}

	return spent, total
}

func percentage(spent, budget decimal.Decimal) float64 {
	if budget.IsZero() {
		return 0
	}

	value, _ := spent.Div(budget).Mul(decimal.NewFromInt(100)).Float64()
	return value
}
