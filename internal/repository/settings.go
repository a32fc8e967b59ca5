package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/models"
)

type SettingsRepository struct {
	db *pgxpool.Pool
}

// NewSettingsRepository создает репозиторий месячных настроек.
func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetMonthly возвращает общий месячный бюджет пользователя.
func (r *SettingsRepository) GetMonthly(ctx context.Context, userID uuid.UUID, month string) (models.MonthlySetting, error) {
	var setting models.MonthlySetting

	err := r.db.QueryRow(ctx,
		`SELECT user_id, month, monthly_budget, updated_at
		 FROM user_settings
		 WHERE user_id = $1 AND month = $2`,
		userID, month,
	).Scan(&setting.UserID, &setting.Month, &setting.MonthlyBudget, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return setting, ErrNotFound
		}
		return setting, err
	}

	return setting, nil
}

// UpsertMonthly сохраняет общий месячный бюджет, не больше одной записи
// на пару (пользователь, месяц).
func (r *SettingsRepository) UpsertMonthly(ctx context.Context, userID uuid.UUID, month string, monthlyBudget decimal.Decimal) (models.MonthlySetting, error) {
	var setting models.MonthlySetting

	err := r.db.QueryRow(ctx,
		`INSERT INTO user_settings (user_id, month, monthly_budget)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, month)
		 DO UPDATE SET monthly_budget = EXCLUDED.monthly_budget, updated_at = NOW()
		 RETURNING user_id, month, monthly_budget, updated_at`,
		userID, month, monthlyBudget,
	).Scan(&setting.UserID, &setting.Month, &setting.MonthlyBudget, &setting.UpdatedAt)
	if err != nil {
		return setting, err
	}

	return setting, nil
}
