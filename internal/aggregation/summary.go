package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/category"
)

// MonthlyReport — данные для письма с месячной сводкой: траты текущего и
// прошлого месяца плюс экономия по тем категориям, где бюджет не выбран.
type MonthlyReport struct {
	CurrentMonthLabel  string                     `json:"current_month"`
	PreviousMonthLabel string                     `json:"previous_month"`
	CurrentMonthTotal  decimal.Decimal            `json:"current_month_total"`
	PreviousMonthTotal decimal.Decimal            `json:"previous_month_total"`
	SpendingByCategory map[string]decimal.Decimal `json:"spending_by_category"`
	Savings            map[string]decimal.Decimal `json:"savings"`
	TotalSavings       decimal.Decimal            `json:"total_savings"`
	TotalBudget        decimal.Decimal            `json:"total_budget"`
	HasSavings         bool                       `json:"has_savings"`
}

// MonthlyReport строит сводку за месяц, в который попадает now, со сравнением
// с предыдущим месяцем. TotalBudget здесь — сумма бюджетов по категориям,
// а не общий месячный лимит из настроек.
func (e *Engine) MonthlyReport(ctx context.Context, userID uuid.UUID, now time.Time) (MonthlyReport, error) {
	now = now.UTC()
	currentMonth := now.Format(monthLayout)
	previous := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	previousMonth := previous.Format(monthLayout)

	currentFrom, currentTo, err := MonthWindow(currentMonth)
	if err != nil {
		return MonthlyReport{}, err
	}
	previousFrom, previousTo, err := MonthWindow(previousMonth)
	if err != nil {
		return MonthlyReport{}, err
	}

	currentTxs, err := e.transactions.ListInRange(ctx, userID, currentFrom, currentTo)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("load transactions: %w", err)
	}
	currentBills, err := e.bills.ListInRange(ctx, userID, currentFrom, currentTo)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("load bills: %w", err)
	}
	previousTxs, err := e.transactions.ListInRange(ctx, userID, previousFrom, previousTo)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("load previous transactions: %w", err)
	}
	previousBills, err := e.bills.ListInRange(ctx, userID, previousFrom, previousTo)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("load previous bills: %w", err)
	}

	budgets, err := e.budgets.ListByMonth(ctx, userID, currentMonth)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("load budgets: %w", err)
	}

	currentSpent, currentTotal := mergeSpend(currentTxs, currentBills)
	_, previousTotal := mergeSpend(previousTxs, previousBills)

	// Отображаемое имя бакета берем из бюджета, если он есть, иначе из
	// первой встреченной записи.
	display := make(map[string]string, len(currentSpent))
	for _, tx := range currentTxs {
		bucket := category.Normalize(tx.Category)
		if _, ok := display[bucket]; !ok {
			display[bucket] = category.Display(tx.Category)
		}
	}
	for _, bill := range currentBills {
		bucket := category.Normalize(bill.Category)
		if _, ok := display[bucket]; !ok {
			display[bucket] = category.Display(bill.Category)
		}
	}
	for _, budget := range budgets {
		display[category.Normalize(budget.Category)] = category.Display(budget.Category)
	}

	spending := make(map[string]decimal.Decimal, len(currentSpent))
	for bucket, amount := range currentSpent {
		spending[display[bucket]] = amount
	}

	savings := make(map[string]decimal.Decimal)
	totalSavings := decimal.Zero
	totalBudget := decimal.Zero
	for _, budget := range budgets {
		totalBudget = totalBudget.Add(budget.Amount)

		spent := currentSpent[category.Normalize(budget.Category)]
		saved := budget.Amount.Sub(spent)
		if saved.IsPositive() {
			savings[category.Display(budget.Category)] = saved
			totalSavings = totalSavings.Add(saved)
		}
	}

	return MonthlyReport{
		CurrentMonthLabel:  monthLabel(now),
		PreviousMonthLabel: monthLabel(previous),
		CurrentMonthTotal:  currentTotal,
		PreviousMonthTotal: previousTotal,
		SpendingByCategory: spending,
		Savings:            savings,
		TotalSavings:       totalSavings,
		TotalBudget:        totalBudget,
		HasSavings:         totalSavings.IsPositive(),
	}, nil
}

func monthLabel(t time.Time) string {
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Year())
}
