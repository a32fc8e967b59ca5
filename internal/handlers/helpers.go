package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// monthParam возвращает месяц из query-параметра month или текущий месяц UTC.
func monthParam(c echo.Context) (string, bool) {
	value := strings.TrimSpace(c.QueryParam("month"))
	if value == "" {
		return time.Now().UTC().Format(monthLayout), true
	}

	if _, err := time.Parse(monthLayout, value); err != nil {
		return "", false
	}

	return value, true
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
}

func conflict(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, map[string]string{"error": message})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": message})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
