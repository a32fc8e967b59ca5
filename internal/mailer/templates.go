package mailer

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/aggregation"
	"example.com/smartwealth/backend/internal/models"
)

// BudgetAlert собирает письмо о достижении порога бюджета категории.
func BudgetAlert(to, category, month string, threshold models.AlertThreshold, spent, budget decimal.Decimal, percentage float64) Message {
	var subject, headline string
	if threshold >= models.ThresholdExceeded {
		subject = fmt.Sprintf("Budget exceeded: %s", category)
		headline = fmt.Sprintf("You have spent %.0f%% of your %s budget for %s.", percentage, category, month)
	} else {
		subject = fmt.Sprintf("Budget alert: %s", category)
		headline = fmt.Sprintf("You are approaching your %s budget for %s: %.0f%% used.", category, month, percentage)
	}

	text := fmt.Sprintf(`%s

Spent: %s
Budget: %s
Remaining: %s

SmartWealth Finance`, headline, spent.StringFixed(2), budget.StringFixed(2), budget.Sub(spent).StringFixed(2))

	html := fmt.Sprintf(`
<html>
	<body style="font-family: Arial, sans-serif; line-height: 1.6;">
		<p>%s</p>
		<table style="border-collapse: collapse;">
			<tr><td style="padding: 4px 12px 4px 0;">Spent</td><td><b>%s</b></td></tr>
			<tr><td style="padding: 4px 12px 4px 0;">Budget</td><td><b>%s</b></td></tr>
			<tr><td style="padding: 4px 12px 4px 0;">Remaining</td><td><b>%s</b></td></tr>
		</table>
		<p>SmartWealth Finance</p>
	</body>
</html>`, template.HTMLEscapeString(headline), spent.StringFixed(2), budget.StringFixed(2), budget.Sub(spent).StringFixed(2))

	return Message{To: to, Subject: subject, Text: text, HTML: html}
}

// MonthlyReport собирает письмо с месячной сводкой трат и экономии.
func MonthlyReport(to string, report aggregation.MonthlyReport) Message {
	subject := fmt.Sprintf("Your spending summary for %s", report.CurrentMonthLabel)

	var text strings.Builder
	fmt.Fprintf(&text, "Spending summary for %s\n\n", report.CurrentMonthLabel)
	fmt.Fprintf(&text, "Total spent: %s\n", report.CurrentMonthTotal.StringFixed(2))
	fmt.Fprintf(&text, "Previous month (%s): %s\n", report.PreviousMonthLabel, report.PreviousMonthTotal.StringFixed(2))
	fmt.Fprintf(&text, "Total budget: %s\n\n", report.TotalBudget.StringFixed(2))

	if len(report.SpendingByCategory) > 0 {
		text.WriteString("Spending by category:\n")
		for _, name := range sortedKeys(report.SpendingByCategory) {
			fmt.Fprintf(&text, "  %s: %s\n", name, report.SpendingByCategory[name].StringFixed(2))
		}
		text.WriteString("\n")
	}

	if report.HasSavings {
		fmt.Fprintf(&text, "You saved %s this month:\n", report.TotalSavings.StringFixed(2))
		for _, name := range sortedKeys(report.Savings) {
			fmt.Fprintf(&text, "  %s: %s\n", name, report.Savings[name].StringFixed(2))
		}
		text.WriteString("\n")
	}

	text.WriteString("SmartWealth Finance")

	var rows strings.Builder
	for _, name := range sortedKeys(report.SpendingByCategory) {
		fmt.Fprintf(&rows, `<tr><td style="padding: 4px 12px 4px 0;">%s</td><td>%s</td></tr>`,
			template.HTMLEscapeString(name), report.SpendingByCategory[name].StringFixed(2))
	}

	savingsBlock := ""
	if report.HasSavings {
		var savingsRows strings.Builder
		for _, name := range sortedKeys(report.Savings) {
			fmt.Fprintf(&savingsRows, `<tr><td style="padding: 4px 12px 4px 0;">%s</td><td>%s</td></tr>`,
				template.HTMLEscapeString(name), report.Savings[name].StringFixed(2))
		}
		savingsBlock = fmt.Sprintf(`
		<p>You saved <b>%s</b> this month:</p>
		<table style="border-collapse: collapse;">%s</table>`,
			report.TotalSavings.StringFixed(2), savingsRows.String())
	}

	html := fmt.Sprintf(`
<html>
	<body style="font-family: Arial, sans-serif; line-height: 1.6;">
		<h2>Spending summary for %s</h2>
		<p>Total spent: <b>%s</b><br>
		Previous month (%s): <b>%s</b><br>
		Total budget: <b>%s</b></p>
		<table style="border-collapse: collapse;">%s</table>
		%s
		<p>SmartWealth Finance</p>
	</body>
</html>`,
		report.CurrentMonthLabel,
		report.CurrentMonthTotal.StringFixed(2),
		report.PreviousMonthLabel,
		report.PreviousMonthTotal.StringFixed(2),
		report.TotalBudget.StringFixed(2),
		rows.String(),
		savingsBlock,
	)

	return Message{To: to, Subject: subject, Text: text.String(), HTML: html}
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
