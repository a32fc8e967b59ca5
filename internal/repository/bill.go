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

type BillRepository struct {
	db *pgxpool.Pool
}

// NewBillRepository создает репозиторий счетов из чеков.
func NewBillRepository(db *pgxpool.Pool) *BillRepository {
	return &BillRepository{db: db}
}

// Create добавляет счет пользователя.
func (r *BillRepository) Create(ctx context.Context, userID uuid.UUID, category string, total decimal.Decimal, date time.Time, source models.ExpenseSource) (models.Bill, error) {
	var bill models.Bill

	err := r.db.QueryRow(ctx,
		`INSERT INTO bills (id, user_id, category, total, date, source)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, user_id, category, total, date, source, created_at`,
		uuid.New(), userID, category, total, date, source,
	).Scan(&bill.ID, &bill.UserID, &bill.Category, &bill.Total, &bill.Date, &bill.Source, &bill.CreatedAt)
	if err != nil {
		return bill, err
	}

	return bill, nil
}

// Delete удаляет счет пользователя.
func (r *BillRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM bills WHERE id = $1 AND user_id = $2`,
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

// GetByID возвращает счет пользователя.
func (r *BillRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (models.Bill, error) {
	var bill models.Bill

	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, category, total, date, source, created_at
		 FROM bills
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&bill.ID, &bill.UserID, &bill.Category, &bill.Total, &bill.Date, &bill.Source, &bill.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bill, ErrNotFound
		}
		return bill, err
	}

	return bill, nil
}

// ListInRange возвращает счета пользователя в полуоткрытом окне [from, to).
// Фильтр по user_id обязателен: выборка чужих счетов недопустима.
func (r *BillRepository) ListInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Bill, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, category, total, date, source, created_at
		 FROM bills
		 WHERE user_id = $1 AND date >= $2 AND date < $3
		 ORDER BY date DESC, created_at DESC`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]models.Bill, 0)
	for rows.Next() {
		var bill models.Bill
		if err := rows.Scan(&bill.ID, &bill.UserID, &bill.Category, &bill.Total, &bill.Date, &bill.Source, &bill.CreatedAt); err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bills, nil
}
