package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/domain/account"
	"ledger/internal/domain/category"
	"ledger/internal/domain/recurring"
	"ledger/internal/domain/transaction"
	"ledger/internal/infrastructure/postgres"
	"ledger/internal/shared/auth"
	"ledger/internal/shared/config"
	"ledger/internal/shared/logging"
	"ledger/internal/shared/period"
)

const usage = `Ledger Admin CLI - Management commands for the ledger API

Usage:
  admin <command> [options]

Commands:
  migrate          Apply, roll back or inspect database migrations
  recurring-run    Materialize every recurring occurrence due on a date
  reconcile        Compare stored account balances with the ledger
  token            Mint a bearer token for local testing

Examples:
  # Apply pending migrations
  admin migrate up

  # Roll back the last migration
  admin migrate down --steps=1

  # Catch up recurring templates as of a date
  admin recurring-run --date=2024-03-01

  # Check balances for users 1 and 2 and repair drift
  admin reconcile --user-id=1,2 --fix

  # Mint a token for user 1
  admin token --user-id=1
`

var logger *slog.Logger

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage, "\n")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "recurring-run":
		runRecurring(os.Args[2:])
	case "reconcile":
		runReconcile(os.Args[2:])
	case "token":
		runToken(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage, "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage, "\n")
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	logger.Error(msg, logging.FieldError, err)
	os.Exit(1)
}

// setup loads configuration and installs the process logger.
func setup() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger = logging.Component(logging.ComponentAdmin)
	return cfg
}

func connect(cfg *config.Config) *postgres.DB {
	if cfg.Database.Driver != config.DriverPostgres {
		fmt.Fprintf(os.Stderr, "admin commands need DB_DRIVER=%s\n", config.DriverPostgres)
		os.Exit(1)
	}
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		fatal("failed to connect to database", err)
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	return db
}

// services wires the ledger over PostgreSQL without cache or event sinks.
type services struct {
	accounts  *account.Service
	ledger    *transaction.Service
	recurring *recurring.Service
}

func newServices(db *postgres.DB, cfg *config.Config) *services {
	accounts := account.NewService(postgres.NewAccountRepository(db))
	categories := category.NewService(postgres.NewCategoryRepository(db))
	ledger := transaction.NewService(postgres.NewTransactionRepository(db), accounts, categories,
		transaction.WithMaxRetries(cfg.Ledger.MaxConflictRetries))
	return &services{
		accounts:  accounts,
		ledger:    ledger,
		recurring: recurring.NewService(postgres.NewRecurringRepository(db), ledger, accounts, categories),
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	steps := fs.Int("steps", 1, "Number of migrations to roll back (down only)")

	fs.Usage = func() {
		fmt.Println("Usage: admin migrate <up|down|version> [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if len(args) == 0 {
		fs.Usage()
		os.Exit(1)
	}
	direction := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	cfg := setup()
	db := connect(cfg)
	defer db.Close()

	switch direction {
	case "up":
		if err := postgres.RunMigrations(db); err != nil {
			fatal("migration failed", err)
		}
		logger.Info("migrations applied")
	case "down":
		if *steps <= 0 {
			fmt.Println("Error: --steps must be positive")
			os.Exit(1)
		}
		if err := postgres.RollbackMigrations(db, *steps); err != nil {
			fatal("rollback failed", err)
		}
		logger.Info("migrations rolled back", "steps", *steps)
	case "version":
		version, dirty, err := postgres.MigrationVersion(db)
		if err != nil {
			fatal("failed to read migration version", err)
		}
		fmt.Printf("version: %d dirty: %t\n", version, dirty)
	default:
		fmt.Printf("Unknown migrate direction: %s\n\n", direction)
		fs.Usage()
		os.Exit(1)
	}
}

func runRecurring(args []string) {
	fs := flag.NewFlagSet("recurring-run", flag.ExitOnError)
	dateStr := fs.String("date", "", "Day to process as YYYY-MM-DD (default today)")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		fmt.Printf("Invalid timeout format: %v\n", err)
		os.Exit(1)
	}

	today := period.Day(time.Now())
	if *dateStr != "" {
		if today, err = period.ParseDay(*dateStr); err != nil {
			fmt.Printf("Invalid date %q: use YYYY-MM-DD\n", *dateStr)
			os.Exit(1)
		}
	}

	cfg := setup()
	db := connect(cfg)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	result, err := newServices(db, cfg).recurring.ProcessDue(ctx, today)
	if err != nil {
		fatal("recurring run failed", err)
	}

	fmt.Printf("\n=== Recurring run for %s ===\n", today.Format(time.DateOnly))
	fmt.Printf("  Templates:     %d\n", result.Templates)
	fmt.Printf("  Materialized:  %d\n", result.Materialized)
	fmt.Printf("  Skipped:       %d\n", result.Skipped)
	fmt.Printf("  Expired:       %d\n", result.Expired)
	fmt.Printf("  Failed:        %d\n", result.Failed)
	logger.Info("recurring run completed", logging.FieldDuration, time.Since(start).Milliseconds())

	if result.Failed > 0 {
		os.Exit(2)
	}
}

func runReconcile(args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	userIDStr := fs.String("user-id", "", "User ID(s) to check (comma-separated for multiple)")
	fix := fs.Bool("fix", false, "Apply the difference to drifted accounts")
	workers := fs.Int("workers", 4, "Number of concurrent workers")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin reconcile [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin reconcile --user-id=1")
		fmt.Println("  admin reconcile --user-id=1,2,3 --fix --workers=8")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	userIDs, err := parseUserIDs(*userIDStr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(userIDs) == 0 {
		fmt.Println("Error: must specify --user-id")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		fmt.Printf("Invalid timeout format: %v\n", err)
		os.Exit(1)
	}

	cfg := setup()
	db := connect(cfg)
	defer db.Close()
	svc := newServices(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("starting reconciliation", "users", len(userIDs), "workers", *workers, "fix", *fix)

	var (
		mu      sync.Mutex
		reports = make(map[int64]*transaction.ReconcileReport, len(userIDs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*workers, 1))
	for _, userID := range userIDs {
		g.Go(func() error {
			report, err := reconcileUser(gctx, svc, userID, *fix)
			if err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}
			mu.Lock()
			reports[userID] = report
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatal("reconciliation failed", err)
	}

	drifted := 0
	for _, userID := range userIDs {
		report := reports[userID]
		printReport(report, *fix)
		drifted += len(report.Discrepancies)
	}
	if drifted > 0 && !*fix {
		os.Exit(2)
	}
}

// reconcileUser reports drift for one user and, with fix, moves each drifted
// balance by its difference through the atomic delta path.
func reconcileUser(ctx context.Context, svc *services, userID int64, fix bool) (*transaction.ReconcileReport, error) {
	report, err := svc.ledger.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !fix {
		return report, nil
	}
	for _, d := range report.Discrepancies {
		if _, err := svc.accounts.ApplyDelta(ctx, userID, d.AccountID, d.Difference); err != nil {
			return nil, fmt.Errorf("failed to repair account %s: %w", d.AccountID, err)
		}
		logger.Info("account balance repaired",
			logging.FieldUserID, userID,
			logging.FieldAccountID, d.AccountID,
			"difference", d.Difference.String())
	}
	return report, nil
}

func printReport(report *transaction.ReconcileReport, fixed bool) {
	fmt.Printf("\n=== User %d ===\n", report.UserID)
	fmt.Printf("  Accounts checked:  %d\n", report.Checked)
	fmt.Printf("  Discrepancies:     %d\n", len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		action := ""
		if fixed {
			action = " (repaired)"
		}
		fmt.Printf("    - %s: stored %s, expected %s%s\n", d.Name, d.Stored, d.Expected, action)
	}
}

func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.Int64("user-id", 0, "User ID to embed in the token")
	email := fs.String("email", "", "Optional email claim")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *userID <= 0 {
		fmt.Println("Error: --user-id must be positive")
		os.Exit(1)
	}

	cfg := setup()
	token, err := auth.NewJWT(cfg.Auth.JWTSecret).WithIssuer(cfg.Auth.Issuer).Generate(*userID, *email)
	if err != nil {
		fatal("failed to mint token", err)
	}
	fmt.Println(token)
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid user ID %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
