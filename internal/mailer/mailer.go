// Package mailer отправляет транзакционные письма через Mailgun или SMTP.
// Письма некритичны: вызывающая сторона решает, глотать ошибку или нет.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/mailgun/mailgun-go/v4"

	"example.com/smartwealth/backend/internal/config"
)

// Message — одно письмо. Text обязателен, HTML опционален.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New выбирает провайдера по конфигурации. Выключенная почта и неполная
// конфигурация провайдера деградируют до mock, сервис при этом не падает.
func New(cfg config.EmailConfig, logger *slog.Logger) Mailer {
	if !cfg.Enabled {
		logger.Info("email disabled, using mock mailer")
		return &Mock{logger: logger}
	}

	switch cfg.Provider {
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.From == "" {
			logger.Warn("mailgun configuration incomplete, falling back to mock mailer")
			return &Mock{logger: logger}
		}
		return &Mailgun{
			mg:         mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey),
			from:       cfg.From,
			senderName: cfg.SenderName,
			logger:     logger,
		}
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPUser == "" || cfg.From == "" {
			logger.Warn("smtp configuration incomplete, falling back to mock mailer")
			return &Mock{logger: logger}
		}
		return &SMTP{
			host:     cfg.SMTPHost,
			port:     cfg.SMTPPort,
			user:     cfg.SMTPUser,
			password: cfg.SMTPPassword,
			from:     cfg.From,
			logger:   logger,
		}
	default:
		return &Mock{logger: logger}
	}
}

// Mailgun отправляет письма через Mailgun API.
type Mailgun struct {
	mg         mailgun.Mailgun
	from       string
	senderName string
	logger     *slog.Logger
}

func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	from := m.from
	if m.senderName != "" {
		from = fmt.Sprintf("%s <%s>", m.senderName, m.from)
	}

	message := m.mg.NewMessage(from, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}

	resp, id, err := m.mg.Send(ctx, message)
	if err != nil {
		m.logger.Error("mailgun send failed",
			slog.String("to", msg.To),
			slog.String("response", resp),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("mailgun send: %w", err)
	}

	m.logger.Info("email sent via mailgun",
		slog.String("to", msg.To),
		slog.String("id", id),
	)
	return nil
}

// SMTP отправляет письма напрямую через SMTP-сервер.
type SMTP struct {
	host     string
	port     int
	user     string
	password string
	from     string
	logger   *slog.Logger
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	body := msg.Text
	contentType := "text/plain; charset=\"UTF-8\""
	if msg.HTML != "" {
		body = msg.HTML
		contentType = "text/html; charset=\"UTF-8\""
	}

	payload := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0\r\nContent-Type: %s\r\n\r\n%s",
		s.from, msg.To, msg.Subject, contentType, body)

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, []string{msg.To}, []byte(payload)); err != nil {
		s.logger.Error("smtp send failed",
			slog.String("to", msg.To),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("smtp send: %w", err)
	}

	s.logger.Info("email sent via smtp", slog.String("to", msg.To))
	return nil
}

// Mock пишет письмо в лог вместо отправки.
type Mock struct {
	logger *slog.Logger

	// Sent заполняется только в тестах.
	Sent []Message
}

func (m *Mock) Send(ctx context.Context, msg Message) error {
	m.Sent = append(m.Sent, msg)
	if m.logger != nil {
		m.logger.Info("mock mailer: would send email",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
	}
	return nil
}
