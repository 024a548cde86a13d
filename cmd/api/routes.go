package main

import (
	"log/slog"
	"net/http"

	"ledger/internal/shared/config"
	"ledger/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger *slog.Logger) http.Handler {
	// Protected API routes
	api := http.NewServeMux()
	deps.AccountHandler.Register(api)
	deps.CategoryHandler.Register(api)
	deps.TransactionHandler.Register(api)
	deps.RecurringHandler.Register(api)
	deps.BudgetHandler.Register(api)
	deps.GoalHandler.Register(api)
	deps.DashboardHandler.Register(api)

	mux := http.NewServeMux()
	deps.HealthHandler.Register(mux)

	// Auth runs first so the request log carries the user id. Tracing sits
	// directly on the API mux to see the matched pattern.
	mux.Handle("/api/", middleware.Auth(deps.JWT)(middleware.Logging(middleware.Tracing(api))))

	// Apply global middleware
	handler := middleware.CORS(cfg.Server.AllowedHosts)(middleware.SecurityHeaders(mux))

	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		logger.Info("TLS security middleware enabled (HSTS)")
	}

	return handler
}
