package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldUserID      = "user_id"
	FieldAccountID   = "account_id"
	FieldTxID        = "transaction_id"
	FieldTemplateID  = "template_id"
	FieldDueDate     = "due_date"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldWorkerID    = "worker_id"
	FieldJob         = "job"
	FieldCacheKey    = "cache_key"
	FieldEventType   = "event_type"
	FieldMaterialize = "materialized"
)

// Components
const (
	ComponentAPI       = "api"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentAccount   = "account"
	ComponentRecurring = "recurring"
	ComponentDashboard = "dashboard"
	ComponentCache     = "cache"
	ComponentScheduler = "scheduler"
	ComponentStorage   = "storage"
	ComponentEvents    = "events"
	ComponentAdmin     = "admin"
	ComponentTelemetry = "telemetry"
)

// Config holds logger configuration
type Config struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer
}

// New builds a slog.Logger from cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// Setup builds a logger from cfg and installs it as the process default.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child of the default logger tagged with a component name.
func Component(name string) *slog.Logger {
	return slog.Default().With(FieldComponent, name)
}
