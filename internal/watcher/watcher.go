// Package watcher слушает канал expense_events в PostgreSQL и превращает
// изменения транзакций и счетов в проверки бюджетов и SSE-события.
// Источник уведомлений — триггеры на таблицах, поэтому любой путь записи,
// включая прямые изменения в базе, попадает в поток.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/smartwealth/backend/internal/notifications"
)

const channelName = "expense_events"

// event — полезная нагрузка pg_notify из триггера notify_expense_event.
type event struct {
	Table    string    `json:"table"`
	Op       string    `json:"op"`
	UserID   uuid.UUID `json:"user_id"`
	Category string    `json:"category"`
	Month    string    `json:"month"`
}

type AlertChecker interface {
	CheckAndAlert(ctx context.Context, userID uuid.UUID, category, month string) (bool, error)
}

// Watcher держит выделенное подключение в режиме LISTEN и раздает события.
type Watcher struct {
	pool    *pgxpool.Pool
	checker AlertChecker
	hub     *notifications.Hub
	logger  *slog.Logger
}

// NewWatcher создает наблюдатель событий расходов.
func NewWatcher(pool *pgxpool.Pool, checker AlertChecker, hub *notifications.Hub, logger *slog.Logger) *Watcher {
	return &Watcher{
		pool:    pool,
		checker: checker,
		hub:     hub,
		logger:  logger,
	}
}

// Run блокируется до отмены контекста, пересоздавая подключение при сбоях.
// Уведомления, пришедшие за время переподключения, теряются: следующее событие
// пользователя все равно пересчитает актуальное состояние.
func (w *Watcher) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := w.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.logger.Warn("expense event listener disconnected",
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (w *Watcher) listen(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		return fmt.Errorf("listen on %s: %w", channelName, err)
	}

	w.logger.Info("expense event listener started", slog.String("channel", channelName))

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		w.handle(ctx, notification.Payload)
	}
}

func (w *Watcher) handle(ctx context.Context, payload string) {
	evt, err := decodeEvent(payload)
	if err != nil {
		w.logger.Error("malformed expense event payload",
			slog.String("payload", payload),
			slog.String("error", err.Error()),
		)
		return
	}

	if w.hub != nil {
		w.hub.Publish(evt.UserID, notifications.Event{
			Type: notifications.EventSummaryStale,
			Data: map[string]any{
				"table":    evt.Table,
				"op":       evt.Op,
				"category": evt.Category,
				"month":    evt.Month,
			},
		})
	}

	// Проверка идет и на удаление: падение трат ниже порога опускает
	// состояние, и следующее пересечение снова оповестит.
	if _, err := w.checker.CheckAndAlert(ctx, evt.UserID, evt.Category, evt.Month); err != nil {
		w.logger.Error("budget check failed",
			slog.String("user_id", evt.UserID.String()),
			slog.String("category", evt.Category),
			slog.String("month", evt.Month),
			slog.String("error", err.Error()),
		)
	}
}

func decodeEvent(payload string) (event, error) {
	var evt event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return evt, err
	}
	if evt.UserID == uuid.Nil {
		return evt, fmt.Errorf("event without user_id")
	}
	if evt.Month == "" {
		return evt, fmt.Errorf("event without month")
	}
	return evt, nil
}
