package extraction

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestPipeline(t *testing.T, handler http.HandlerFunc) (*Pipeline, *httptest.Server, *[]time.Duration) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	delays := make([]time.Duration, 0, maxAttempts)
	pipeline := NewPipeline(server.URL, "test-key", 5*time.Second, nil)
	pipeline.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	return pipeline, server, &delays
}

func validUpload() Upload {
	return Upload{Filename: "receipt.jpg", MIMEType: "image/jpeg", Data: []byte("fake-image-bytes")}
}

func extractionResponse(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + jsonString(text) + `}]}}]}`
}

func jsonString(value string) string {
	out := `"`
	for _, r := range value {
		switch r {
		case '"':
			out += `\"`
		case '\n':
			out += `\n`
		default:
			out += string(r)
		}
	}
	return out + `"`
}

// TestExtractSuccess проверяет успешное извлечение данных чека.
func TestExtractSuccess(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		w.Write([]byte(extractionResponse(`Here you go: {"category":"Groceries","date":"2025-05-10","total":45.99}`)))
	})

	receipt, err := pipeline.Extract(context.Background(), validUpload())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if receipt.Category != "Groceries" {
		t.Fatalf("unexpected category: %s", receipt.Category)
	}
	if receipt.Date != "2025-05-10" {
		t.Fatalf("unexpected date: %s", receipt.Date)
	}
	if receipt.Total.String() != "45.99" {
		t.Fatalf("unexpected total: %s", receipt.Total.String())
	}
}

// TestExtractStringTotal проверяет очистку строкового total от символов валюты.
func TestExtractStringTotal(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(extractionResponse(`{"category":"Dining","date":"2025-05-11","total":"$1,234.50"}`)))
	})

	receipt, err := pipeline.Extract(context.Background(), validUpload())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if receipt.Total.String() != "1234.50" && receipt.Total.String() != "1234.5" {
		t.Fatalf("unexpected total: %s", receipt.Total.String())
	}
}

// TestExtractRetryBound проверяет ровно 5 попыток при постоянном 429.
func TestExtractRetryBound(t *testing.T) {
	attempts := 0
	pipeline, _, delays := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := pipeline.Extract(context.Background(), validUpload())

	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}

	if attempts != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, attempts)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d backoff delays, got %d", len(want), len(*delays))
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("delay %d: expected %v, got %v", i, d, (*delays)[i])
		}
	}
}

// TestExtractRecoversAfterRateLimit проверяет успех после временного 429.
func TestExtractRecoversAfterRateLimit(t *testing.T) {
	attempts := 0
	pipeline, _, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(extractionResponse(`{"category":"Utilities","date":"2025-05-01","total":80}`)))
	})

	receipt, err := pipeline.Extract(context.Background(), validUpload())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if receipt.Category != "Utilities" {
		t.Fatalf("unexpected category: %s", receipt.Category)
	}
}

// TestExtractNonRetryableFailure проверяет немедленный отказ на не-429 ошибке.
func TestExtractNonRetryableFailure(t *testing.T) {
	attempts := 0
	pipeline, _, delays := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	})

	_, err := pipeline.Extract(context.Background(), validUpload())

	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}

	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
	if len(*delays) != 0 {
		t.Fatalf("expected no backoff, got %v", *delays)
	}
}

// TestExtractRejectsOversizedFile проверяет отказ без сетевого вызова.
func TestExtractRejectsOversizedFile(t *testing.T) {
	attempts := 0
	pipeline, _, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
	})

	oversized := Upload{Filename: "big.pdf", MIMEType: "application/pdf", Data: make([]byte, 6*1024*1024)}

	_, err := pipeline.Extract(context.Background(), oversized)

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected no network calls, got %d", attempts)
	}
}

// TestExtractRejectsUnsupportedType проверяет валидацию MIME-типа.
func TestExtractRejectsUnsupportedType(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {})

	upload := Upload{Filename: "notes.txt", MIMEType: "text/plain", Data: []byte("hello")}

	var validationErr *ValidationError
	if _, err := pipeline.Extract(context.Background(), upload); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// TestExtractMissingConfig проверяет ошибку конфигурации без сетевого вызова.
func TestExtractMissingConfig(t *testing.T) {
	pipeline := NewPipeline("", "", time.Second, nil)

	var configErr *ConfigError
	if _, err := pipeline.Extract(context.Background(), validUpload()); !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

// TestExtractNoJSONInResponse проверяет ошибку при ответе без JSON-объекта.
func TestExtractNoJSONInResponse(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(extractionResponse("sorry, cannot read this receipt")))
	})

	var extractionErr *ExtractionError
	if _, err := pipeline.Extract(context.Background(), validUpload()); !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

// TestExtractInvalidTotal проверяет ошибку для нечислового total.
func TestExtractInvalidTotal(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(extractionResponse(`{"category":"Misc","date":"2025-05-02","total":"n/a"}`)))
	})

	var extractionErr *ExtractionError
	if _, err := pipeline.Extract(context.Background(), validUpload()); !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

// TestParseReceiptCodeFence проверяет разбор ответа в markdown-ограждении.
func TestParseReceiptCodeFence(t *testing.T) {
	receipt, err := parseReceipt("```json\n{\"category\":\"Fuel\",\"date\":\"2025-04-30\",\"total\":52.3}\n```")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if receipt.Category != "Fuel" {
		t.Fatalf("unexpected category: %s", receipt.Category)
	}
}

// TestSleepContextCanceled проверяет отмену backoff-паузы через контекст.
func TestSleepContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := sleepContext(ctx, 5*time.Second); err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sleep did not honor cancellation, took %v", elapsed)
	}
}
