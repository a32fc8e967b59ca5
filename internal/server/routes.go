package server

import (
	"github.com/labstack/echo/v4"

	"example.com/smartwealth/backend/internal/handlers"
)

func registerRoutes(
	e *echo.Echo,
	authHandler *handlers.AuthHandler,
	transactionHandler *handlers.TransactionHandler,
	billHandler *handlers.BillHandler,
	budgetHandler *handlers.BudgetHandler,
	settingsHandler *handlers.SettingsHandler,
	summaryHandler *handlers.SummaryHandler,
	alertHandler *handlers.AlertHandler,
	notificationHandler *handlers.NotificationHandler,
	authMiddleware echo.MiddlewareFunc,
	authRateLimiter echo.MiddlewareFunc,
	extractionRateLimiter echo.MiddlewareFunc,
) {
	e.GET("/health", handlers.Health)

	api := e.Group("/api/v1")
	authGroup := api.Group("/auth", authRateLimiter)

	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", authHandler.Me, authMiddleware)

	transactions := api.Group("/transactions", authMiddleware)
	transactions.GET("", transactionHandler.List)
	transactions.POST("", transactionHandler.Create)
	transactions.GET("/export/csv", transactionHandler.ExportCSV)
	transactions.GET("/:id", transactionHandler.Get)
	transactions.PUT("/:id", transactionHandler.Update)
	transactions.DELETE("/:id", transactionHandler.Delete)

	bills := api.Group("/bills", authMiddleware)
	bills.GET("", billHandler.List)
	bills.POST("", billHandler.Create)
	bills.POST("/extract", billHandler.Extract, extractionRateLimiter)
	bills.GET("/:id", billHandler.Get)
	bills.DELETE("/:id", billHandler.Delete)

	budgets := api.Group("/budgets", authMiddleware)
	budgets.GET("", budgetHandler.List)
	budgets.POST("", budgetHandler.Create)
	budgets.GET("/:id", budgetHandler.Get)
	budgets.PUT("/:id", budgetHandler.Update)
	budgets.DELETE("/:id", budgetHandler.Delete)

	settings := api.Group("/settings", authMiddleware)
	settings.GET("", settingsHandler.Get)
	settings.PUT("", settingsHandler.Upsert)

	summary := api.Group("/summary", authMiddleware)
	summary.GET("", summaryHandler.Get)
	summary.GET("/report", summaryHandler.Report)
	summary.POST("/send", summaryHandler.SendReport)

	alertsGroup := api.Group("/alerts", authMiddleware)
	alertsGroup.POST("/send", alertHandler.Send)
	alertsGroup.GET("/state", alertHandler.State)

	notifications := api.Group("/notifications", authMiddleware)
	notifications.GET("/stream", notificationHandler.Stream)
}
