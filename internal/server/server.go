package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/smartwealth/backend/internal/aggregation"
	"example.com/smartwealth/backend/internal/alerts"
	"example.com/smartwealth/backend/internal/auth"
	"example.com/smartwealth/backend/internal/config"
	"example.com/smartwealth/backend/internal/events"
	"example.com/smartwealth/backend/internal/extraction"
	"example.com/smartwealth/backend/internal/handlers"
	"example.com/smartwealth/backend/internal/mailer"
	"example.com/smartwealth/backend/internal/notifications"
	"example.com/smartwealth/backend/internal/repository"
	"example.com/smartwealth/backend/internal/watcher"
)

// New собирает HTTP-сервер Echo с роутами и зависимостями. Вторым значением
// возвращается наблюдатель событий расходов, его запускает вызывающая сторона.
func New(cfg config.Config, logger *slog.Logger, db *pgxpool.Pool, publisher *events.Publisher) (*echo.Echo, *watcher.Watcher) {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	billRepo := repository.NewBillRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	alertStateRepo := repository.NewAlertStateRepository(db)
	notificationHub := notifications.NewHub()

	extractionLimiter := rate.NewLimiter(
		rate.Limit(float64(cfg.Extraction.RateLimitPerMinute)/60.0),
		cfg.Extraction.RateLimitBurst,
	)
	pipeline := extraction.NewPipeline(cfg.Extraction.EndpointURL, cfg.Extraction.APIKey, cfg.Extraction.Timeout, extractionLimiter)

	engine := aggregation.NewEngine(transactionRepo, billRepo, budgetRepo, settingsRepo)
	mail := mailer.New(cfg.Email, logger)
	dispatcher := alerts.NewDispatcher(budgetRepo, engine, alertStateRepo, userRepo, mail, publisher, notificationHub, logger)
	expenseWatcher := watcher.NewWatcher(db, dispatcher, notificationHub, logger)

	authHandler := handlers.NewAuthHandler(userRepo, tokenRepo, tokenManager)
	transactionHandler := handlers.NewTransactionHandler(transactionRepo, notificationHub)
	billHandler := handlers.NewBillHandler(billRepo, pipeline, notificationHub)
	budgetHandler := handlers.NewBudgetHandler(budgetRepo, dispatcher, notificationHub)
	settingsHandler := handlers.NewSettingsHandler(settingsRepo)
	summaryHandler := handlers.NewSummaryHandler(engine, dispatcher)
	alertHandler := handlers.NewAlertHandler(dispatcher, alertStateRepo)
	notificationHandler := handlers.NewNotificationHandler(notificationHub)

	registerRoutes(
		e,
		authHandler,
		transactionHandler,
		billHandler,
		budgetHandler,
		settingsHandler,
		summaryHandler,
		alertHandler,
		notificationHandler,
		auth.JWTMiddleware(tokenManager),
		authRateLimiter(cfg.Auth),
		extractionRateLimiter(cfg.Extraction),
	)

	return e, expenseWatcher
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}

func authRateLimiter(cfg config.AuthConfig) echo.MiddlewareFunc {
	limit := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     cfg.RateLimitBurst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}

func extractionRateLimiter(cfg config.ExtractionConfig) echo.MiddlewareFunc {
	limit := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     cfg.RateLimitBurst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
