package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/models"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

// NewTransactionRepository создает репозиторий транзакций.
func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create добавляет транзакцию пользователя.
func (r *TransactionRepository) Create(ctx context.Context, userID uuid.UUID, category string, amount decimal.Decimal, date time.Time, description *string, source models.ExpenseSource) (models.Transaction, error) {
	var tx models.Transaction

	err := r.db.QueryRow(ctx,
		`INSERT INTO transactions (id, user_id, category, amount, date, description, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, user_id, category, amount, date, description, source, created_at, updated_at`,
		uuid.New(), userID, category, amount, date, description, source,
	).Scan(&tx.ID, &tx.UserID, &tx.Category, &tx.Amount, &tx.Date, &tx.Description, &tx.Source, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return tx, err
	}

	return tx, nil
}

// Update изменяет транзакцию пользователя.
func (r *TransactionRepository) Update(ctx context.Context, userID, id uuid.UUID, category string, amount decimal.Decimal, date time.Time, description *string) (models.Transaction, error) {
	var tx models.Transaction

	err := r.db.QueryRow(ctx,
		`UPDATE transactions
		 SET category = $3,
		     amount = $4,
		     date = $5,
		     description = $6,
		     updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, category, amount, date, description, source, created_at, updated_at`,
		id, userID, category, amount, date, description,
	).Scan(&tx.ID, &tx.UserID, &tx.Category, &tx.Amount, &tx.Date, &tx.Description, &tx.Source, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tx, ErrNotFound
		}
		return tx, err
	}

	return tx, nil
}

// GetByID возвращает транзакцию пользователя.
func (r *TransactionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (models.Transaction, error) {
	var tx models.Transaction

	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, category, amount, date, description, source, created_at, updated_at
		 FROM transactions
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&tx.ID, &tx.UserID, &tx.Category, &tx.Amount, &tx.Date, &tx.Description, &tx.Source, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tx, ErrNotFound
		}
		return tx, err
	}

	return tx, nil
}

// Delete удаляет транзакцию пользователя.
func (r *TransactionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`,
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

// ListInRange возвращает транзакции пользователя в полуоткрытом окне [from, to).
func (r *TransactionRepository) ListInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, category, amount, date, description, source, created_at, updated_at
		 FROM transactions
		 WHERE user_id = $1 AND date >= $2 AND date < $3
		 ORDER BY date DESC, created_at DESC`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Category, &tx.Amount, &tx.Date, &tx.Description, &tx.Source, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}
