// Package events публикует доменные события в RabbitMQ для внешних
// потребителей. Публикация необязательна: пустой URL брокера отключает ее,
// и все методы безопасны на nil-издателе.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"example.com/smartwealth/backend/internal/models"
)

// AlertEvent — событие отправки бюджетного оповещения.
type AlertEvent struct {
	UserID     uuid.UUID             `json:"user_id"`
	Category   string                `json:"category"`
	Month      string                `json:"month"`
	Threshold  models.AlertThreshold `json:"threshold"`
	Spent      decimal.Decimal       `json:"spent"`
	Budget     decimal.Decimal       `json:"budget"`
	Percentage float64               `json:"percentage"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// Publisher держит подключение к брокеру и объявленную топологию.
type Publisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	queue    string
}

// NewPublisher подключается к брокеру и объявляет exchange с очередью.
func NewPublisher(url, exchange, queue string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		queue:    queue,
	}

	if err := p.setup(); err != nil {
		p.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return p, nil
}

func (p *Publisher) setup() error {
	err := p.channel.ExchangeDeclare(
		p.exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = p.channel.QueueDeclare(
		p.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = p.channel.QueueBind(
		p.queue,
		p.queue, // routing key matches queue name on a direct exchange
		p.exchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishAlert публикует событие оповещения. Nil-издатель молча пропускает.
func (p *Publisher) PublishAlert(ctx context.Context, event AlertEvent) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.queue,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish alert event: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
