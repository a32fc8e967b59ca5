package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	maxAttempts = 5
	maxFileSize = 5 * 1024 * 1024
)

var allowedMIMETypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"application/pdf": {},
}

type Upload struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Receipt — структурированный результат извлечения данных из чека.
type Receipt struct {
	Category string          `json:"category"`
	Date     string          `json:"date"`
	Total    decimal.Decimal `json:"total"`
}

// Pipeline превращает загруженный чек в структурированную запись через
// внешний inference-вызов с ограниченным экспоненциальным ретраем.
type Pipeline struct {
	client  *client
	limiter *rate.Limiter

	// sleep подменяется в тестах для проверки расписания backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline создает пайплайн извлечения чеков.
func NewPipeline(endpointURL, apiKey string, timeout time.Duration, limiter *rate.Limiter) *Pipeline {
	return &Pipeline{
		client:  newClient(endpointURL, apiKey, timeout),
		limiter: limiter,
		sleep:   sleepContext,
	}
}

// Extract валидирует файл и выполняет извлечение с ретраями только на 429.
// Расписание задержек: 2^attempt секунд перед повторами 2..5.
func (p *Pipeline) Extract(ctx context.Context, file Upload) (Receipt, error) {
	if err := validateUpload(file); err != nil {
		return Receipt{}, err
	}

	if strings.TrimSpace(p.client.endpointURL) == "" || strings.TrimSpace(p.client.apiKey) == "" {
		return Receipt{}, &ConfigError{msg: "extraction endpoint URL and API key must be configured"}
	}

	encoded := base64.StdEncoding.EncodeToString(file.Data)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return Receipt{}, &ExtractionError{msg: "extraction canceled", cause: err}
			}
		}

		text, err := p.client.generate(ctx, file.MIMEType, encoded)
		if err != nil {
			if errors.Is(err, errRateLimited) {
				if attempt == maxAttempts-1 {
					break
				}
				if err := p.sleep(ctx, backoffDelay(attempt)); err != nil {
					return Receipt{}, &ExtractionError{msg: "extraction canceled", cause: err}
				}
				continue
			}
			return Receipt{}, err
		}

		return parseReceipt(text)
	}

	return Receipt{}, &ExtractionError{msg: "max retries reached for extraction endpoint"}
}

func validateUpload(file Upload) error {
	if len(file.Data) == 0 {
		return &ValidationError{msg: "no file provided"}
	}

	if _, ok := allowedMIMETypes[file.MIMEType]; !ok {
		return &ValidationError{msg: "file must be a JPEG, PNG, or PDF"}
	}

	if len(file.Data) > maxFileSize {
		return &ValidationError{msg: "file size exceeds 5MB"}
	}

	return nil
}

func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseReceipt находит первый {...} в свободном тексте ответа модели и
// разбирает его как JSON с ключами category, date, total.
func parseReceipt(text string) (Receipt, error) {
	payload := extractObject(text)
	if payload == "" {
		return Receipt{}, &ExtractionError{msg: "no valid JSON object in extraction response"}
	}

	var raw struct {
		Category string          `json:"category"`
		Date     string          `json:"date"`
		Total    json.RawMessage `json:"total"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Receipt{}, &ExtractionError{msg: "no valid JSON object in extraction response", cause: err}
	}

	total, err := parseTotal(raw.Total)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{
		Category: strings.TrimSpace(raw.Category),
		Date:     strings.TrimSpace(raw.Date),
		Total:    total,
	}, nil
}

func extractObject(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		trimmed = strings.TrimSpace(trimmed)
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return trimmed[start : end+1]
}

// parseTotal принимает число или строку; из строки вырезается все, кроме цифр
// и точки, до разбора.
func parseTotal(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Zero, &ExtractionError{msg: "total is not a valid number"}
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		cleaned := stripNonNumeric(asString)
		total, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, &ExtractionError{msg: fmt.Sprintf("total is not a valid number: %q", asString)}
		}
		return total, nil
	}

	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return decimal.Zero, &ExtractionError{msg: "total is not a valid number", cause: err}
	}

	return decimal.NewFromFloat(asNumber), nil
}

func stripNonNumeric(value string) string {
	var builder strings.Builder
	for _, r := range value {
		if (r >= '0' && r <= '9') || r == '.' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}
