package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/models"
)

type BudgetRepository struct {
	db *pgxpool.Pool
}

// NewBudgetRepository создает репозиторий бюджетов.
func NewBudgetRepository(db *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// Create добавляет бюджет. Уникальность пары (пользователь, нормализованная
// категория, месяц) обеспечивается индексом, конфликт отдается как ErrConflict.
func (r *BudgetRepository) Create(ctx context.Context, userID uuid.UUID, category string, amount decimal.Decimal, month string, alertThreshold *int) (models.Budget, error) {
	var budget models.Budget

	err := r.db.QueryRow(ctx,
		`INSERT INTO budgets (id, user_id, category, amount, month, alert_threshold)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, user_id, category, amount, month, alert_threshold, created_at, updated_at`,
		uuid.New(), userID, category, amount, month, alertThreshold,
	).Scan(&budget.ID, &budget.UserID, &budget.Category, &budget.Amount, &budget.Month, &budget.AlertThreshold, &budget.CreatedAt, &budget.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return budget, ErrConflict
		}
		return budget, err
	}

	return budget, nil
}

// Update изменяет бюджет пользователя.
func (r *BudgetRepository) Update(ctx context.Context, userID, id uuid.UUID, category string, amount decimal.Decimal, alertThreshold *int) (models.Budget, error) {
	var budget models.Budget

	err := r.db.QueryRow(ctx,
		`UPDATE budgets
		 SET category = $3,
		     amount = $4,
		     alert_threshold = $5,
		     updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, category, amount, month, alert_threshold, created_at, updated_at`,
		id, userID, category, amount, alertThreshold,
	).Scan(&budget.ID, &budget.UserID, &budget.Category, &budget.Amount, &budget.Month, &budget.AlertThreshold, &budget.CreatedAt, &budget.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return budget, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return budget, ErrConflict
		}
		return budget, err
	}

	return budget, nil
}

// Delete удаляет бюджет пользователя.
func (r *BudgetRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM budgets WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID возвращает бюджет пользователя.
func (r *BudgetRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (models.Budget, error) {
	var budget models.Budget

	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, category, amount, month, alert_threshold, created_at, updated_at
		 FROM budgets
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&budget.ID, &budget.UserID, &budget.Category, &budget.Amount, &budget.Month, &budget.AlertThreshold, &budget.CreatedAt, &budget.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return budget, ErrNotFound
		}
		return budget, err
	}

	return budget, nil
}

// ListByMonth возвращает бюджеты пользователя за месяц.
func (r *BudgetRepository) ListByMonth(ctx context.Context, userID uuid.UUID, month string) ([]models.Budget, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, category, amount, month, alert_threshold, created_at, updated_at
		 FROM budgets
		 WHERE user_id = $1 AND month = $2
		 ORDER BY category`,
		userID, month,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := make([]models.Budget, 0)
	for rows.Next() {
		var budget models.Budget
		if err := rows.Scan(&budget.ID, &budget.UserID, &budget.Category, &budget.Amount, &budget.Month, &budget.AlertThreshold, &budget.CreatedAt, &budget.UpdatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return budgets, nil
}
