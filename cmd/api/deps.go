package main

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/domain/account"
	"ledger/internal/domain/budget"
	"ledger/internal/domain/category"
	"ledger/internal/domain/dashboard"
	"ledger/internal/domain/goal"
	"ledger/internal/domain/recurring"
	"ledger/internal/domain/transaction"
	"ledger/internal/infrastructure/amqp"
	"ledger/internal/infrastructure/cache"
	"ledger/internal/infrastructure/events"
	"ledger/internal/infrastructure/memory"
	"ledger/internal/infrastructure/postgres"
	"ledger/internal/infrastructure/postgres/listener"
	httphandlers "ledger/internal/interfaces/http"
	"ledger/internal/shared/auth"
	"ledger/internal/shared/config"
	"ledger/internal/shared/logging"
)

const amqpConnectAttempts = 5

// repositories is one storage backend.
type repositories struct {
	accounts     account.Repository
	categories   category.Repository
	transactions transaction.Repository
	recurring    recurring.Repository
	budgets      budget.Repository
	goals        goal.Repository
}

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB        *postgres.DB
	Publisher *amqp.Publisher
	Listener  *listener.InvalidationListener

	// Handlers
	AccountHandler     *httphandlers.AccountHandler
	CategoryHandler    *httphandlers.CategoryHandler
	TransactionHandler *httphandlers.TransactionHandler
	RecurringHandler   *httphandlers.RecurringHandler
	BudgetHandler      *httphandlers.BudgetHandler
	GoalHandler        *httphandlers.GoalHandler
	DashboardHandler   *httphandlers.DashboardHandler
	HealthHandler      *httphandlers.HealthHandler

	// Auth
	JWT *auth.JWT

	// Recurring service (for scheduler job provider)
	RecurringService *recurring.Service
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}
	checks := map[string]httphandlers.HealthCheck{}

	var repos repositories
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		repos = repositories{
			accounts:     store.Accounts(),
			categories:   store.Categories(),
			transactions: store.Transactions(),
			recurring:    store.Recurring(),
			budgets:      store.Budgets(),
			goals:        store.Goals(),
		}
		logger.Warn("using in-memory store, data is lost on restart")

	default:
		db, err := postgres.New(cfg.Database.ConnectionString())
		if err != nil {
			return nil, err
		}
		deps.DB = db
		logger.Info("connected to database", "host", cfg.Database.Host, "db", cfg.Database.DBName)

		if cfg.Database.RunMigrations {
			if err := postgres.RunMigrations(db); err != nil {
				deps.Close()
				return nil, err
			}
			logger.Info("database migrations applied")
		}

		repos = repositories{
			accounts:     postgres.NewAccountRepository(db),
			categories:   postgres.NewCategoryRepository(db),
			transactions: postgres.NewTransactionRepository(db),
			recurring:    postgres.NewRecurringRepository(db),
			budgets:      postgres.NewBudgetRepository(db),
			goals:        postgres.NewGoalRepository(db),
		}
		checks["database"] = db.Health
	}

	// Dashboard cache, invalidated by every committed ledger write
	lru := cache.NewLRU(cfg.Cache.MaxSize, cfg.Cache.TTL)
	invalidator := dashboard.NewInvalidator(lru)

	fanout := events.NewFanout()
	fanout.Subscribe("dashboard-cache", invalidator)

	if cfg.Events.AMQPURL != "" {
		publisher := amqp.NewPublisher(cfg.Events.AMQPURL, cfg.Events.AMQPExchange, cfg.Events.AMQPQueue)
		if err := publisher.Connect(ctx, amqpConnectAttempts); err != nil {
			// The publisher reconnects on the next event; start without it.
			logger.Warn("message broker unavailable at startup", logging.FieldError, err)
		}
		fanout.Subscribe("amqp", publisher)
		deps.Publisher = publisher
	}

	if deps.DB != nil && cfg.Events.NotifyEnabled {
		deps.Listener = listener.NewInvalidationListener(cfg.Database.ConnectionString(), cfg.Events.NotifyChannel, lru)
		deps.Listener.Start(ctx)
	}

	// Domain services
	accountService := account.NewService(repos.accounts, invalidator.UserChanged)
	categoryService := category.NewService(repos.categories)
	ledger := transaction.NewService(repos.transactions, accountService, categoryService,
		transaction.WithPublisher(fanout),
		transaction.WithMaxRetries(cfg.Ledger.MaxConflictRetries),
	)
	recurringService := recurring.NewService(repos.recurring, ledger, accountService, categoryService)
	budgetService := budget.NewService(repos.budgets, ledger, categoryService, invalidator.UserChanged)
	goalService := goal.NewService(repos.goals)
	dashboardService := dashboard.NewService(accountService, ledger, categoryService, lru,
		dashboard.WithBudgets(budgetService))

	if err := categoryService.SeedDefaults(ctx); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to seed default categories: %w", err)
	}

	deps.JWT = auth.NewJWT(cfg.Auth.JWTSecret).WithIssuer(cfg.Auth.Issuer)
	deps.RecurringService = recurringService

	deps.AccountHandler = httphandlers.NewAccountHandler(accountService)
	deps.CategoryHandler = httphandlers.NewCategoryHandler(categoryService)
	deps.TransactionHandler = httphandlers.NewTransactionHandler(ledger)
	deps.RecurringHandler = httphandlers.NewRecurringHandler(recurringService)
	deps.BudgetHandler = httphandlers.NewBudgetHandler(budgetService)
	deps.GoalHandler = httphandlers.NewGoalHandler(goalService)
	deps.DashboardHandler = httphandlers.NewDashboardHandler(dashboardService)
	deps.HealthHandler = httphandlers.NewHealthHandler(checks)

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Listener != nil {
		d.Listener.Stop()
	}
	if d.Publisher != nil {
		d.Publisher.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
