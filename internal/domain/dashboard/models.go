package dashboard

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/account"
	"ledger/internal/domain/transaction"
	"ledger/internal/shared/apperror"
)

const (
	DefaultRecent = 10
	MaxRecent     = 50
	// DefaultTopCategories is how many categories are listed before the rest
	// are folded into the "others" bucket.
	DefaultTopCategories = 5
	maxEvolutionDays     = 366
	defaultEvolutionDays = 30
	othersLabel          = "others"

	// neutralHealthScore is reported for a month without transactions.
	neutralHealthScore = 50
	// varianceMinTransactions is how many transactions a month needs before
	// spending consistency counts toward the health score.
	varianceMinTransactions = 5
)

var (
	lowBalanceThreshold   = decimal.NewFromInt(100)
	highAverageExpense    = decimal.NewFromInt(200)
	goodSavingsRate       = decimal.NewFromInt(20)
	acceptableSavingsRate = decimal.NewFromInt(10)
)

var (
	ErrInvalidGranularity = apperror.InvalidArgument("granularity must be daily or monthly")
	ErrRangeTooLarge      = apperror.InvalidArgument("daily balance evolution is limited to 366 days")
)

// Trend classifies the direction of a balance series.
type Trend string

const (
	TrendGrowing   Trend = "growing"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Granularity is the spacing of balance evolution points.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
)

type AccountSummary struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Type      account.Type    `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	IsPrimary bool            `json:"isPrimary"`
}

// Balance is the consolidated balance across every account of a user.
type Balance struct {
	Total    decimal.Decimal                  `json:"total"`
	ByType   map[account.Type]decimal.Decimal `json:"byType"`
	Accounts []AccountSummary                 `json:"accounts"`
}

// Entry is a compact view of one transaction.
type Entry struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
}

func entryOf(tx *transaction.Transaction) *Entry {
	return &Entry{ID: tx.ID, Description: tx.Description, Amount: tx.Amount, Date: tx.Date}
}

// Totals are income and expense figures over one period.
type Totals struct {
	Income       decimal.Decimal `json:"income"`
	Expenses     decimal.Decimal `json:"expenses"`
	Net          decimal.Decimal `json:"net"`
	IncomeCount  int             `json:"incomeCount"`
	ExpenseCount int             `json:"expenseCount"`
}

// Comparison relates a month to the one before it. Changes are percentages
// and are nil when the previous value is zero.
type Comparison struct {
	Previous       Totals           `json:"previous"`
	IncomeChange   *decimal.Decimal `json:"incomeChange,omitempty"`
	ExpensesChange *decimal.Decimal `json:"expensesChange,omitempty"`
}

// MonthSummary reports a month's income and expenses. Expenses are magnitudes.
type MonthSummary struct {
	Month string `json:"month"`
	Totals
	HighestIncome       *Entry          `json:"highestIncome,omitempty"`
	HighestExpense      *Entry          `json:"highestExpense,omitempty"`
	DailyAverageIncome  decimal.Decimal `json:"dailyAverageIncome"`
	DailyAverageExpense decimal.Decimal `json:"dailyAverageExpense"`
	Comparison          Comparison      `json:"comparison"`
}

// CategorySlice is one category's share of a month's expenses.
// CategoryID is nil for the "others" bucket.
type CategorySlice struct {
	CategoryID *uuid.UUID      `json:"categoryId,omitempty"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Count      int             `json:"count"`
}

type CategoryDistribution struct {
	Month  string          `json:"month"`
	Total  decimal.Decimal `json:"total"`
	Slices []CategorySlice `json:"slices"`
}

type Point struct {
	Date    time.Time       `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

type Evolution struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Granularity Granularity     `json:"granularity"`
	Points      []Point         `json:"points"`
	Change      decimal.Decimal `json:"change"`
	Trend       Trend           `json:"trend"`
}

// Overview bundles the main views for one request.
type Overview struct {
	Balance    *Balance              `json:"balance"`
	Summary    *MonthSummary         `json:"summary"`
	Expenses   *CategoryDistribution `json:"expenses"`
	Recent     []*Entry              `json:"recent"`
	ComputedAt time.Time             `json:"computedAt"`
}

// Status grades an indicator.
type Status string

const (
	StatusGood     Status = "good"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

type AlertType string

const (
	AlertLowBalance     AlertType = "low_balance"
	AlertBudgetExceeded AlertType = "budget_exceeded"
)

// Alert flags an account or budget that needs attention.
type Alert struct {
	Type       AlertType  `json:"type"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	AccountID  *uuid.UUID `json:"accountId,omitempty"`
	CategoryID *uuid.UUID `json:"categoryId,omitempty"`
}

type Suggestion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Indicators grade a month's finances. SavingsRate is a percentage of income
// and is nil when the month has no income.
type Indicators struct {
	Month               string           `json:"month"`
	HealthScore         int              `json:"healthScore"`
	SavingsRate         *decimal.Decimal `json:"savingsRate,omitempty"`
	SavingsStatus       Status           `json:"savingsStatus,omitempty"`
	DailyAverageExpense decimal.Decimal  `json:"dailyAverageExpense"`
	Alerts              []Alert          `json:"alerts"`
	Suggestions         []Suggestion     `json:"suggestions"`
}
