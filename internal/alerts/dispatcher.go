// Package alerts проверяет бюджеты по категориям и рассылает оповещения о
// достигнутых порогах. Пороги фиксированы: 80% — предупреждение, 100% —
// превышение. Повторная проверка того же состояния письма не дублирует.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/aggregation"
	"example.com/smartwealth/backend/internal/category"
	"example.com/smartwealth/backend/internal/events"
	"example.com/smartwealth/backend/internal/mailer"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/notifications"
)

type BudgetSource interface {
	ListByMonth(ctx context.Context, userID uuid.UUID, month string) ([]models.Budget, error)
}

type SpendSource interface {
	CategorySpend(ctx context.Context, userID uuid.UUID, month, cat string) (decimal.Decimal, error)
	MonthlyReport(ctx context.Context, userID uuid.UUID, now time.Time) (aggregation.MonthlyReport, error)
}

type StateStore interface {
	Transition(ctx context.Context, userID uuid.UUID, category, month string, target models.AlertThreshold) (models.AlertThreshold, error)
}

type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type EventPublisher interface {
	PublishAlert(ctx context.Context, event events.AlertEvent) error
}

// Dispatcher сверяет траты с бюджетами и доводит оповещения до пользователя.
type Dispatcher struct {
	budgets   BudgetSource
	spend     SpendSource
	states    StateStore
	users     UserSource
	mail      mailer.Mailer
	publisher EventPublisher
	hub       *notifications.Hub
	logger    *slog.Logger

	// emails кэширует адреса получателей, чтобы всплеск событий по одному
	// пользователю не ходил в базу за каждым письмом.
	emails *cache.Cache

	now func() time.Time
}

// NewDispatcher создает диспетчер оповещений. publisher и hub могут быть nil.
func NewDispatcher(
	budgets BudgetSource,
	spend SpendSource,
	states StateStore,
	users UserSource,
	mail mailer.Mailer,
	publisher EventPublisher,
	hub *notifications.Hub,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		budgets:   budgets,
		spend:     spend,
		states:    states,
		users:     users,
		mail:      mail,
		publisher: publisher,
		hub:       hub,
		logger:    logger,
		emails:    cache.New(10*time.Minute, 30*time.Minute),
		now:       time.Now,
	}
}

// targetThreshold возвращает порог, которому соответствует процент трат.
func targetThreshold(percentage float64) models.AlertThreshold {
	switch {
	case percentage >= 100:
		return models.ThresholdExceeded
	case percentage >= 80:
		return models.ThresholdApproaching
	default:
		return models.ThresholdNone
	}
}

// CheckAndAlert проверяет бюджет категории за месяц и при первом достижении
// порога отправляет письмо. Возвращает true, если оповещение было отправлено.
// Отсутствие бюджета по категории не ошибка, проверять нечего.
func (d *Dispatcher) CheckAndAlert(ctx context.Context, userID uuid.UUID, cat, month string) (bool, error) {
	budgets, err := d.budgets.ListByMonth(ctx, userID, month)
	if err != nil {
		return false, fmt.Errorf("load budgets: %w", err)
	}

	var budget *models.Budget
	for i := range budgets {
		if category.Same(budgets[i].Category, cat) {
			budget = &budgets[i]
			break
		}
	}
	if budget == nil || budget.Amount.IsZero() {
		return false, nil
	}

	spent, err := d.spend.CategorySpend(ctx, userID, month, cat)
	if err != nil {
		return false, fmt.Errorf("compute category spend: %w", err)
	}

	pct, _ := spent.Div(budget.Amount).Mul(decimal.NewFromInt(100)).Float64()
	target := targetThreshold(pct)

	// Переход выполняется и вниз: если траты упали ниже порога, состояние
	// опускается молча, и повторное пересечение оповестит снова.
	bucket := category.Normalize(cat)
	previous, err := d.states.Transition(ctx, userID, bucket, month, target)
	if err != nil {
		return false, fmt.Errorf("transition alert state: %w", err)
	}
	if target == models.ThresholdNone || previous >= target {
		// Порог уже отработан, в том числе конкурирующей проверкой.
		return false, nil
	}

	display := category.Display(budget.Category)
	d.notify(ctx, userID, display, month, target, spent, budget.Amount, pct)
	return true, nil
}

// notify рассылает оповещение по всем каналам. Сбои доставки логируются и не
// откатывают переход состояния: порог считается отработанным.
func (d *Dispatcher) notify(ctx context.Context, userID uuid.UUID, display, month string, target models.AlertThreshold, spent, budget decimal.Decimal, pct float64) {
	email, err := d.recipientEmail(ctx, userID)
	if err != nil {
		d.logger.Error("alert recipient lookup failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	} else {
		msg := mailer.BudgetAlert(email, display, month, target, spent, budget, pct)
		if err := d.mail.Send(ctx, msg); err != nil {
			d.logger.Error("alert email delivery failed",
				slog.String("user_id", userID.String()),
				slog.String("category", display),
				slog.String("error", err.Error()),
			)
		}
	}

	if d.hub != nil {
		d.hub.Publish(userID, notifications.Event{
			Type: notifications.EventAlertSent,
			Data: map[string]any{
				"category":   display,
				"month":      month,
				"threshold":  int(target),
				"percentage": pct,
			},
		})
	}

	if d.publisher != nil {
		event := events.AlertEvent{
			UserID:     userID,
			Category:   display,
			Month:      month,
			Threshold:  target,
			Spent:      spent,
			Budget:     budget,
			Percentage: pct,
			OccurredAt: d.now().UTC(),
		}
		if err := d.publisher.PublishAlert(ctx, event); err != nil {
			d.logger.Error("alert event publish failed",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	d.logger.Info("budget alert dispatched",
		slog.String("user_id", userID.String()),
		slog.String("category", display),
		slog.String("month", month),
		slog.Int("threshold", int(target)),
	)
}

// SendMonthlyReport отправляет пользователю письмо с месячной сводкой.
func (d *Dispatcher) SendMonthlyReport(ctx context.Context, userID uuid.UUID) error {
	report, err := d.spend.MonthlyReport(ctx, userID, d.now())
	if err != nil {
		return fmt.Errorf("build monthly report: %w", err)
	}

	email, err := d.recipientEmail(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup recipient: %w", err)
	}

	if err := d.mail.Send(ctx, mailer.MonthlyReport(email, report)); err != nil {
		return fmt.Errorf("send monthly report: %w", err)
	}

	d.logger.Info("monthly report sent",
		slog.String("user_id", userID.String()),
		slog.String("month", report.CurrentMonthLabel),
	)
	return nil
}

func (d *Dispatcher) recipientEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	key := userID.String()
	if cached, ok := d.emails.Get(key); ok {
		return cached.(string), nil
	}

	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	d.emails.Set(key, user.Email, cache.DefaultExpiration)
	return user.Email, nil
}
