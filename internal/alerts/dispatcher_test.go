package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/aggregation"
	"example.com/smartwealth/backend/internal/events"
	"example.com/smartwealth/backend/internal/mailer"
	"example.com/smartwealth/backend/internal/models"
	"example.com/smartwealth/backend/internal/notifications"
)

type fakeBudgets struct {
	budgets []models.Budget
}

func (f *fakeBudgets) ListByMonth(ctx context.Context, userID uuid.UUID, month string) ([]models.Budget, error) {
	var out []models.Budget
	for _, b := range f.budgets {
		if b.UserID == userID && b.Month == month {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeSpend struct {
	spent  decimal.Decimal
	report aggregation.MonthlyReport
}

func (f *fakeSpend) CategorySpend(ctx context.Context, userID uuid.UUID, month, cat string) (decimal.Decimal, error) {
	return f.spent, nil
}

func (f *fakeSpend) MonthlyReport(ctx context.Context, userID uuid.UUID, now time.Time) (aggregation.MonthlyReport, error) {
	return f.report, nil
}

type fakeStates struct {
	states map[string]models.AlertThreshold
}

func newFakeStates() *fakeStates {
	return &fakeStates{states: make(map[string]models.AlertThreshold)}
}

func (f *fakeStates) Transition(ctx context.Context, userID uuid.UUID, category, month string, target models.AlertThreshold) (models.AlertThreshold, error) {
	key := userID.String() + "|" + category + "|" + month
	previous := f.states[key]
	if previous != target {
		f.states[key] = target
	}
	return previous, nil
}

type fakeUsers struct {
	user  models.User
	calls int
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	f.calls++
	if id != f.user.ID {
		return models.User{}, errors.New("unknown user")
	}
	return f.user, nil
}

type fakePublisher struct {
	events []events.AlertEvent
}

func (f *fakePublisher) PublishAlert(ctx context.Context, event events.AlertEvent) error {
	f.events = append(f.events, event)
	return nil
}

type failingMailer struct{}

func (failingMailer) Send(ctx context.Context, msg mailer.Message) error {
	return errors.New("smtp down")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	dispatcher *Dispatcher
	mock       *mailer.Mock
	publisher  *fakePublisher
	states     *fakeStates
	users      *fakeUsers
	userID     uuid.UUID
}

func newFixture(t *testing.T, budgetAmount, spent string) *fixture {
	t.Helper()

	userID := uuid.New()
	budgets := &fakeBudgets{budgets: []models.Budget{
		{ID: uuid.New(), UserID: userID, Category: "Groceries", Amount: dec(budgetAmount), Month: "2025-05"},
	}}
	spendSource := &fakeSpend{spent: dec(spent)}
	states := newFakeStates()
	users := &fakeUsers{user: models.User{ID: userID, Email: "user@example.com"}}
	mock := &mailer.Mock{}
	publisher := &fakePublisher{}

	d := NewDispatcher(budgets, spendSource, states, users, mock, publisher, notifications.NewHub(), testLogger())
	return &fixture{dispatcher: d, mock: mock, publisher: publisher, states: states, users: users, userID: userID}
}

func TestCheckAndAlertBelowThreshold(t *testing.T) {
	f := newFixture(t, "100", "79.99")

	sent, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if sent {
		t.Error("no alert expected below 80%")
	}
	if len(f.mock.Sent) != 0 {
		t.Errorf("got %d emails, want 0", len(f.mock.Sent))
	}
}

func TestCheckAndAlertApproaching(t *testing.T) {
	f := newFixture(t, "100", "80")

	sent, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if !sent {
		t.Fatal("expected an alert at exactly 80%")
	}
	if len(f.mock.Sent) != 1 {
		t.Fatalf("got %d emails, want 1", len(f.mock.Sent))
	}
	if !strings.Contains(f.mock.Sent[0].Subject, "Budget alert") {
		t.Errorf("subject = %q, want approaching alert", f.mock.Sent[0].Subject)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("got %d broker events, want 1", len(f.publisher.events))
	}
	if f.publisher.events[0].Threshold != models.ThresholdApproaching {
		t.Errorf("event threshold = %d, want %d", f.publisher.events[0].Threshold, models.ThresholdApproaching)
	}
}

func TestCheckAndAlertExceeded(t *testing.T) {
	f := newFixture(t, "100", "120")

	sent, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if !sent {
		t.Fatal("expected an alert above 100%")
	}
	if !strings.Contains(f.mock.Sent[0].Subject, "Budget exceeded") {
		t.Errorf("subject = %q, want exceeded alert", f.mock.Sent[0].Subject)
	}
}

func TestCheckAndAlertIdempotent(t *testing.T) {
	f := newFixture(t, "100", "85")

	for i := 0; i < 3; i++ {
		if _, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05"); err != nil {
			t.Fatalf("CheckAndAlert #%d: %v", i+1, err)
		}
	}

	if len(f.mock.Sent) != 1 {
		t.Errorf("got %d emails, want exactly 1 for repeated checks", len(f.mock.Sent))
	}
}

func TestCheckAndAlertEscalates(t *testing.T) {
	f := newFixture(t, "100", "85")

	if _, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05"); err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}

	// Spending crosses 100% later in the month.
	f.dispatcher.spend.(*fakeSpend).spent = dec("105")
	sent, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if !sent {
		t.Fatal("expected escalation from 80 to 100")
	}
	if len(f.mock.Sent) != 2 {
		t.Fatalf("got %d emails, want 2", len(f.mock.Sent))
	}
	if !strings.Contains(f.mock.Sent[1].Subject, "Budget exceeded") {
		t.Errorf("second subject = %q, want exceeded alert", f.mock.Sent[1].Subject)
	}
}

func TestCheckAndAlertRenotifiesAfterDrop(t *testing.T) {
	f := newFixture(t, "100", "85")

	if _, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05"); err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}

	// An expense is removed and spending falls back under the threshold.
	f.dispatcher.spend.(*fakeSpend).spent = dec("40")
	sent, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if sent {
		t.Fatal("dropping below the threshold must not notify")
	}

	// Crossing 80% again fires a fresh alert.
	f.dispatcher.spend.(*fakeSpend).spent = dec("85")
	sent, err = f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if !sent {
		t.Fatal("re-crossing the threshold after a drop must notify again")
	}
	if len(f.mock.Sent) != 2 {
		t.Fatalf("got %d emails, want 2", len(f.mock.Sent))
	}
}

func TestCheckAndAlertNormalizedCategoryMatch(t *testing.T) {
	f := newFixture(t, "100", "90")

	// The incoming event carries a differently cased, padded category.
	sent, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "  GROCERIES ", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if !sent {
		t.Fatal("expected the budget to match after normalization")
	}
}

func TestCheckAndAlertNoBudget(t *testing.T) {
	f := newFixture(t, "100", "500")

	sent, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Travel", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if sent {
		t.Error("no alert expected without a budget for the category")
	}
}

func TestCheckAndAlertZeroBudget(t *testing.T) {
	f := newFixture(t, "0", "50")

	sent, err := f.dispatcher.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if sent {
		t.Error("zero budget must not produce alerts")
	}
}

func TestCheckAndAlertMailFailureStillMarksState(t *testing.T) {
	f := newFixture(t, "100", "90")

	d := NewDispatcher(
		&fakeBudgets{budgets: []models.Budget{
			{ID: uuid.New(), UserID: f.userID, Category: "Groceries", Amount: dec("100"), Month: "2025-05"},
		}},
		&fakeSpend{spent: dec("90")},
		f.states,
		f.users,
		failingMailer{},
		nil,
		nil,
		testLogger(),
	)

	sent, err := d.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if !sent {
		t.Fatal("threshold crossing must count as dispatched even if delivery fails")
	}

	// The failed delivery is not retried on the next check.
	sent, err = d.CheckAndAlert(context.Background(), f.userID, "Groceries", "2025-05")
	if err != nil {
		t.Fatalf("CheckAndAlert: %v", err)
	}
	if sent {
		t.Error("state transition already happened, no second dispatch expected")
	}
}

func TestRecipientEmailCached(t *testing.T) {
	f := newFixture(t, "100", "90")

	ctx := context.Background()
	if _, err := f.dispatcher.recipientEmail(ctx, f.userID); err != nil {
		t.Fatalf("recipientEmail: %v", err)
	}
	if _, err := f.dispatcher.recipientEmail(ctx, f.userID); err != nil {
		t.Fatalf("recipientEmail: %v", err)
	}

	if f.users.calls != 1 {
		t.Errorf("user lookups = %d, want 1 (second hit served from cache)", f.users.calls)
	}
}

func TestSendMonthlyReport(t *testing.T) {
	f := newFixture(t, "100", "50")
	f.dispatcher.spend.(*fakeSpend).report = aggregation.MonthlyReport{
		CurrentMonthLabel:  "5/2025",
		PreviousMonthLabel: "4/2025",
		CurrentMonthTotal:  dec("150"),
		PreviousMonthTotal: dec("200"),
		SpendingByCategory: map[string]decimal.Decimal{"Groceries": dec("150")},
		Savings:            map[string]decimal.Decimal{},
		TotalBudget:        dec("300"),
	}

	if err := f.dispatcher.SendMonthlyReport(context.Background(), f.userID); err != nil {
		t.Fatalf("SendMonthlyReport: %v", err)
	}
	if len(f.mock.Sent) != 1 {
		t.Fatalf("got %d emails, want 1", len(f.mock.Sent))
	}
	if f.mock.Sent[0].To != "user@example.com" {
		t.Errorf("recipient = %q, want user@example.com", f.mock.Sent[0].To)
	}
	if !strings.Contains(f.mock.Sent[0].Subject, "5/2025") {
		t.Errorf("subject = %q, want month label", f.mock.Sent[0].Subject)
	}
}
