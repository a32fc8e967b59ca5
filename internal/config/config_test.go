package config

import (
	"strings"
	"testing"
	"time"
)

// TestParseBoolEnv проверяет разбор булевых флагов из ENV.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("EMAIL_ENABLED", "TRUE")
	if !parseBoolEnv("EMAIL_ENABLED", false) {
		t.Fatal("expected TRUE to parse as true")
	}

	t.Setenv("EMAIL_ENABLED", "yes")
	if parseBoolEnv("EMAIL_ENABLED", false) {
		t.Fatal("expected non-true value to parse as false")
	}

	if !parseBoolEnv("MISSING_ENV", true) {
		t.Fatal("expected fallback for missing variable")
	}
}

// TestParseDurationEnv проверяет разбор таймаутов из ENV.
func TestParseDurationEnv(t *testing.T) {
	t.Setenv("OCR_TIMEOUT", "45s")

	got, err := parseDurationEnv("OCR_TIMEOUT", time.Second)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != 45*time.Second {
		t.Fatalf("expected 45s, got %v", got)
	}

	t.Setenv("OCR_TIMEOUT", "soon")
	if _, err := parseDurationEnv("OCR_TIMEOUT", time.Second); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

// TestValidateEmailProvider проверяет валидацию провайдера почты.
func TestValidateEmailProvider(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Host: "localhost", User: "u", Name: "n", MaxOpenConns: 10, MaxIdleConns: 5},
		Auth:     AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour},
		Email:    EmailConfig{Enabled: true, Provider: "pigeon", From: "alerts@example.com"},
	}

	err := cfg.validate()
	if err == nil || !strings.Contains(err.Error(), "EMAIL_PROVIDER") {
		t.Fatalf("expected provider error, got %v", err)
	}

	cfg.Email.Provider = "mailgun"
	err = cfg.validate()
	if err == nil || !strings.Contains(err.Error(), "MAILGUN") {
		t.Fatalf("expected mailgun credentials error, got %v", err)
	}

	cfg.Email.Provider = "mock"
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected mock provider to validate, got %v", err)
	}
}

// TestDSN проверяет сборку строки подключения.
func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 5432, User: "sw", Password: "pw", Name: "smartwealth", SSLMode: "disable"}

	dsn := db.DSN()
	if !strings.HasPrefix(dsn, "postgres://sw:pw@localhost:5432/smartwealth") {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Fatalf("expected sslmode in dsn: %s", dsn)
	}
}
