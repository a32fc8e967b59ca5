package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/smartwealth/backend/internal/models"
)

type AlertStateRepository struct {
	db *pgxpool.Pool
}

// NewAlertStateRepository создает репозиторий состояний оповещений.
func NewAlertStateRepository(db *pgxpool.Pool) *AlertStateRepository {
	return &AlertStateRepository{db: db}
}

// Get возвращает состояние оповещения по нормализованной категории за месяц.
func (r *AlertStateRepository) Get(ctx context.Context, userID uuid.UUID, category, month string) (models.AlertState, error) {
	var state models.AlertState

	err := r.db.QueryRow(ctx,
		`SELECT user_id, category, month, last_threshold, updated_at
		 FROM alert_states
		 WHERE user_id = $1 AND category = $2 AND month = $3`,
		userID, category, month,
	).Scan(&state.UserID, &state.Category, &state.Month, &state.LastThreshold, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state, ErrNotFound
		}
		return state, err
	}

	return state, nil
}

// Transition атомарно переводит состояние к target и возвращает предыдущий
// порог. Строка блокируется на время транзакции, чтобы конкурирующие проверки
// не отправили дубликат оповещения.
func (r *AlertStateRepository) Transition(ctx context.Context, userID uuid.UUID, category, month string, target models.AlertThreshold) (models.AlertThreshold, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.ThresholdNone, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var previous models.AlertThreshold
	err = tx.QueryRow(ctx,
		`SELECT last_threshold
		 FROM alert_states
		 WHERE user_id = $1 AND category = $2 AND month = $3
		 FOR UPDATE`,
		userID, category, month,
	).Scan(&previous)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		previous = models.ThresholdNone
		_, err = tx.Exec(ctx,
			`INSERT INTO alert_states (user_id, category, month, last_threshold)
			 VALUES ($1, $2, $3, $4)`,
			userID, category, month, target,
		)
		if err != nil {
			return models.ThresholdNone, err
		}
	case err != nil:
		return models.ThresholdNone, err
	default:
		if previous != target {
			_, err = tx.Exec(ctx,
				`UPDATE alert_states
				 SET last_threshold = $4, updated_at = NOW()
				 WHERE user_id = $1 AND category = $2 AND month = $3`,
				userID, category, month, target,
			)
			if err != nil {
				return models.ThresholdNone, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ThresholdNone, err
	}

	return previous, nil
}
