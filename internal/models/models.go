package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExpenseSource string

type AlertThreshold int

const (
	ExpenseSourceManual  ExpenseSource = "manual"
	ExpenseSourceReceipt ExpenseSource = "receipt"

	ThresholdNone        AlertThreshold = 0
	ThresholdApproaching AlertThreshold = 80
	ThresholdExceeded    AlertThreshold = 100
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         *string   `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RefreshToken struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *uuid.UUID `json:"replaced_by,omitempty"`
}

type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description *string         `json:"description,omitempty"`
	Source      ExpenseSource   `json:"source"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Bill хранит сумму в колонке total, а не amount; семантика та же.
type Bill struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Category  string          `json:"category"`
	Total     decimal.Decimal `json:"total"`
	Date      time.Time       `json:"date"`
	Source    ExpenseSource   `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

type Budget struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Category       string          `json:"category"`
	Amount         decimal.Decimal `json:"amount"`
	Month          string          `json:"month"`
	AlertThreshold *int            `json:"alert_threshold,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type MonthlySetting struct {
	UserID        uuid.UUID       `json:"user_id"`
	Month         string          `json:"month"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AlertState фиксирует последний достигнутый порог по категории за месяц.
type AlertState struct {
	UserID        uuid.UUID      `json:"user_id"`
	Category      string         `json:"category"`
	Month         string         `json:"month"`
	LastThreshold AlertThreshold `json:"last_threshold"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
