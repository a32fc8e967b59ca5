package watcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/aggregation"
	"example.com/smartwealth/backend/internal/alerts"
	"example.com/smartwealth/backend/internal/mailer"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/notifications"
)

func TestDecodeEvent(t *testing.T) {
	userID := uuid.New()
	payload := `{"table":"transactions","op":"insert","user_id":"` + userID.String() + `","category":"Food","month":"2025-05"}`

	evt, err := decodeEvent(payload)
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if evt.Table != "transactions" || evt.Op != "insert" {
		t.Errorf("table/op = %s/%s, want transactions/insert", evt.Table, evt.Op)
	}
	if evt.UserID != userID {
		t.Errorf("user id = %s, want %s", evt.UserID, userID)
	}
	if evt.Month != "2025-05" {
		t.Errorf("month = %s, want 2025-05", evt.Month)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", "not json"},
		{"missing user", `{"table":"bills","op":"insert","month":"2025-05"}`},
		{"missing month", `{"table":"bills","op":"insert","user_id":"` + uuid.New().String() + `"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeEvent(tc.payload); err == nil {
				t.Errorf("expected error for payload %q", tc.payload)
			}
		})
	}
}

type recordingChecker struct {
	calls []string
}

func (r *recordingChecker) CheckAndAlert(ctx context.Context, userID uuid.UUID, category, month string) (bool, error) {
	r.calls = append(r.calls, category+"|"+month)
	return false, nil
}

func TestHandleChecksBudgetOnDelete(t *testing.T) {
	checker := &recordingChecker{}
	hub := notifications.NewHub()
	w := NewWatcher(nil, checker, hub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	userID := uuid.New()
	ch, unsubscribe := hub.Subscribe(userID)
	defer unsubscribe()

	// Deletions lower spend, so the check must run to let the alert state
	// drop and re-arm for the next crossing.
	w.handle(context.Background(), `{"table":"transactions","op":"delete","user_id":"`+userID.String()+`","category":"Food","month":"2025-05"}`)

	if len(checker.calls) != 1 || checker.calls[0] != "Food|2025-05" {
		t.Errorf("calls = %v, want one check for Food|2025-05", checker.calls)
	}

	select {
	case evt := <-ch:
		if evt.Type != notifications.EventSummaryStale {
			t.Errorf("event type = %s, want %s", evt.Type, notifications.EventSummaryStale)
		}
	default:
		t.Error("expected a summary_stale event")
	}
}

func TestHandleChecksBudgetOnInsert(t *testing.T) {
	checker := &recordingChecker{}
	w := NewWatcher(nil, checker, notifications.NewHub(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	w.handle(context.Background(), `{"table":"bills","op":"insert","user_id":"`+uuid.New().String()+`","category":"Food","month":"2025-05"}`)

	if len(checker.calls) != 1 || checker.calls[0] != "Food|2025-05" {
		t.Errorf("calls = %v, want one check for Food|2025-05", checker.calls)
	}
}

type staticBudgets struct {
	userID uuid.UUID
	amount decimal.Decimal
}

func (s *staticBudgets) ListByMonth(ctx context.Context, userID uuid.UUID, month string) ([]models.Budget, error) {
	return []models.Budget{
		{ID: uuid.New(), UserID: s.userID, Category: "Food", Amount: s.amount, Month: month},
	}, nil
}

type mutableSpend struct {
	spent decimal.Decimal
}

func (m *mutableSpend) CategorySpend(ctx context.Context, userID uuid.UUID, month, cat string) (decimal.Decimal, error) {
	return m.spent, nil
}

func (m *mutableSpend) MonthlyReport(ctx context.Context, userID uuid.UUID, now time.Time) (aggregation.MonthlyReport, error) {
	return aggregation.MonthlyReport{}, nil
}

type memoryStates struct {
	states map[string]models.AlertThreshold
}

func (m *memoryStates) Transition(ctx context.Context, userID uuid.UUID, category, month string, target models.AlertThreshold) (models.AlertThreshold, error) {
	key := userID.String() + "|" + category + "|" + month
	previous := m.states[key]
	if previous != target {
		m.states[key] = target
	}
	return previous, nil
}

type staticUsers struct {
	user models.User
}

func (s *staticUsers) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.user, nil
}

// Полный цикл через диспетчер: событие удаления опускает состояние, и новое
// пересечение порога снова присылает письмо.
func TestHandleDeleteRearmsAlert(t *testing.T) {
	userID := uuid.New()
	spend := &mutableSpend{spent: decimal.RequireFromString("85")}
	mock := &mailer.Mock{}

	dispatcher := alerts.NewDispatcher(
		&staticBudgets{userID: userID, amount: decimal.RequireFromString("100")},
		spend,
		&memoryStates{states: make(map[string]models.AlertThreshold)},
		&staticUsers{user: models.User{ID: userID, Email: "user@example.com"}},
		mock,
		nil,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	w := NewWatcher(nil, dispatcher, notifications.NewHub(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	insert := `{"table":"transactions","op":"insert","user_id":"` + userID.String() + `","category":"Food","month":"2025-05"}`
	del := `{"table":"transactions","op":"delete","user_id":"` + userID.String() + `","category":"Food","month":"2025-05"}`

	ctx := context.Background()
	w.handle(ctx, insert)
	if len(mock.Sent) != 1 {
		t.Fatalf("got %d emails after first crossing, want 1", len(mock.Sent))
	}

	// An expense is deleted and spend falls below the threshold.
	spend.spent = decimal.RequireFromString("40")
	w.handle(ctx, del)
	if len(mock.Sent) != 1 {
		t.Fatalf("got %d emails after delete, want still 1", len(mock.Sent))
	}

	// A new expense crosses 80% again.
	spend.spent = decimal.RequireFromString("85")
	w.handle(ctx, insert)
	if len(mock.Sent) != 2 {
		t.Fatalf("got %d emails after re-crossing, want 2 (one per crossing)", len(mock.Sent))
	}
}
