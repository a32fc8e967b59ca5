package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest("GET", "/?"+query, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

// TestMonthParamDefault проверяет подстановку текущего месяца.
func TestMonthParamDefault(t *testing.T) {
	month, ok := monthParam(contextWithQuery(""))
	if !ok {
		t.Fatal("expected default month to be valid")
	}

	if month != time.Now().UTC().Format(monthLayout) {
		t.Fatalf("unexpected default month: %s", month)
	}
}

// TestMonthParamExplicit проверяет разбор явного месяца.
func TestMonthParamExplicit(t *testing.T) {
	month, ok := monthParam(contextWithQuery("month=2025-05"))
	if !ok {
		t.Fatal("expected 2025-05 to be valid")
	}
	if month != "2025-05" {
		t.Fatalf("unexpected month: %s", month)
	}
}

// TestMonthParamInvalid проверяет отклонение неверного формата.
func TestMonthParamInvalid(t *testing.T) {
	for _, value := range []string{"05-2025", "2025-13", "2025-5", "garbage"} {
		if _, ok := monthParam(contextWithQuery("month=" + value)); ok {
			t.Errorf("expected %q to be rejected", value)
		}
	}
}
