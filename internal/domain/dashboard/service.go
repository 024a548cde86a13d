package dashboard

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledger/internal/domain/account"
	"ledger/internal/domain/budget"
	"ledger/internal/domain/category"
	"ledger/internal/domain/transaction"
	"ledger/internal/shared/logging"
	"ledger/internal/shared/period"
)

var (
	hundred        = decimal.NewFromInt(100)
	trendThreshold = decimal.NewFromInt(1)
)

// AccountLister lists a user's accounts with their current balances.
type AccountLister interface {
	ListAccounts(ctx context.Context, userID int64) ([]*account.Account, error)
}

// LedgerReader is the read side of the transaction ledger.
type LedgerReader interface {
	List(ctx context.Context, filter transaction.ListFilter) (*transaction.Page, error)
	All(ctx context.Context, filter transaction.ListFilter) iter.Seq2[*transaction.Transaction, error]
	ExpensesByCategory(ctx context.Context, userID int64, from, to time.Time) ([]transaction.CategoryTotal, error)
}

// CategoryLister lists the categories visible to a user.
type CategoryLister interface {
	ListCategories(ctx context.Context, userID int64, kind *category.Kind) ([]*category.Category, error)
}

// BudgetLister lists a month's budgets with their spend.
type BudgetLister interface {
	ListBudgets(ctx context.Context, userID int64, month time.Time) ([]*budget.Status, error)
}

// Option configures a Service.
type Option func(*Service)

// WithBudgets enables over-budget alerts in Indicators.
func WithBudgets(b BudgetLister) Option {
	return func(s *Service) { s.budgets = b }
}

// Service computes dashboard views. Every view is a pure function of ledger
// and account state and is cached per (user, view, period).
type Service struct {
	accounts   AccountLister
	ledger     LedgerReader
	categories CategoryLister
	budgets    BudgetLister
	cache      Cache
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a dashboard service. A nil cache disables caching.
func NewService(accounts AccountLister, ledger LedgerReader, categories CategoryLister, cache Cache, opts ...Option) *Service {
	s := &Service{
		accounts:   accounts,
		ledger:     ledger,
		categories: categories,
		cache:      cache,
		now:        time.Now,
		logger:     logging.Component(logging.ComponentDashboard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Balance returns the consolidated balance of every account.
func (s *Service) Balance(ctx context.Context, userID int64) (*Balance, error) {
	key := Key{UserID: userID, View: ViewBalance, Period: "current"}
	return cached(ctx, s.cache, s.logger, key, func(ctx context.Context) (*Balance, error) {
		return s.computeBalance(ctx, userID)
	})
}

// MonthSummary returns income and expense figures for month.
func (s *Service) MonthSummary(ctx context.Context, userID int64, month time.Time) (*MonthSummary, error) {
	month = s.monthOrCurrent(month)
	key := Key{UserID: userID, View: ViewSummary, Period: month.Format("2006-01")}
	return cached(ctx, s.cache, s.logger, key, func(ctx context.Context) (*MonthSummary, error) {
		return s.computeSummary(ctx, userID, month)
	})
}

// ExpensesByCategory returns the month's expense distribution. The top
// categories are listed individually and the rest folded into "others".
func (s *Service) ExpensesByCategory(ctx context.Context, userID int64, month time.Time, top int) (*CategoryDistribution, error) {
	month = s.monthOrCurrent(month)
	if top <= 0 {
		top = DefaultTopCategories
	}
	key := Key{UserID: userID, View: ViewExpenses, Period: month.Format("2006-01") + "/" + strconv.Itoa(top)}
	return cached(ctx, s.cache, s.logger, key, func(ctx context.Context) (*CategoryDistribution, error) {
		return s.computeDistribution(ctx, userID, month, top)
	})
}

// BalanceEvolution returns the consolidated balance at the end of each day
// (or month) in [from, to]. Zero bounds default to the last 30 days.
func (s *Service) BalanceEvolution(ctx context.Context, userID int64, from, to time.Time, granularity Granularity) (*Evolution, error) {
	if granularity == "" {
		granularity = GranularityDaily
	}
	if granularity != GranularityDaily && granularity != GranularityMonthly {
		return nil, ErrInvalidGranularity
	}
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -defaultEvolutionDays)
	}
	from, to = period.Day(from), period.Day(to)
	if to.Before(from) {
		return nil, transaction.ErrInvalidRange
	}
	if granularity == GranularityDaily && to.Sub(from) > maxEvolutionDays*24*time.Hour {
		return nil, ErrRangeTooLarge
	}

	key := Key{
		UserID: userID,
		View:   ViewEvolution,
		Period: from.Format(time.DateOnly) + "/" + to.Format(time.DateOnly) + "/" + string(granularity),
	}
	return cached(ctx, s.cache, s.logger, key, func(ctx context.Context) (*Evolution, error) {
		return s.computeEvolution(ctx, userID, from, to, granularity)
	})
}

// RecentTransactions returns the n newest transactions.
func (s *Service) RecentTransactions(ctx context.Context, userID int64, n int) ([]*Entry, error) {
	switch {
	case n <= 0:
		n = DefaultRecent
	case n > MaxRecent:
		n = MaxRecent
	}
	key := Key{UserID: userID, View: ViewRecent, Period: strconv.Itoa(n)}
	return cached(ctx, s.cache, s.logger, key, func(ctx context.Context) ([]*Entry, error) {
		page, err := s.ledger.List(ctx, transaction.ListFilter{UserID: userID, Limit: n})
		if err != nil {
			return nil, err
		}
		out := make([]*Entry, 0, len(page.Items))
		for _, tx := range page.Items {
			out = append(out, entryOf(tx))
		}
		return out, nil
	})
}

// Indicators grades the month: a 0-100 health score, the savings rate, the
// daily average expense, alerts and suggestions.
func (s *Service) Indicators(ctx context.Context, userID int64, month time.Time) (*Indicators, error) {
	month = s.monthOrCurrent(month)
	key := Key{UserID: userID, View: ViewIndicators, Period: month.Format("2006-01")}
	return cached(ctx, s.cache, s.logger, key, func(ctx context.Context) (*Indicators, error) {
		return s.computeIndicators(ctx, userID, month)
	})
}

// Overview computes the main views concurrently.
func (s *Service) Overview(ctx context.Context, userID int64, month time.Time) (*Overview, error) {
	ov := &Overview{ComputedAt: s.now().UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ov.Balance, err = s.Balance(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Summary, err = s.MonthSummary(ctx, userID, month)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Expenses, err = s.ExpensesByCategory(ctx, userID, month, DefaultTopCategories)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Recent, err = s.RecentTransactions(ctx, userID, DefaultRecent)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ov, nil
}

func (s *Service) computeBalance(ctx context.Context, userID int64) (*Balance, error) {
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	b := &Balance{
		Total:    decimal.Zero,
		ByType:   make(map[account.Type]decimal.Decimal),
		Accounts: make([]AccountSummary, 0, len(accounts)),
	}
	for _, acc := range accounts {
		b.Total = b.Total.Add(acc.Balance)
		b.ByType[acc.Type] = b.ByType[acc.Type].Add(acc.Balance)
		b.Accounts = append(b.Accounts, AccountSummary{
			ID:        acc.ID,
			Name:      acc.Name,
			Type:      acc.Type,
			Balance:   acc.Balance,
			IsPrimary: acc.IsPrimary,
		})
	}
	return b, nil
}

func (s *Service) computeSummary(ctx context.Context, userID int64, month time.Time) (*MonthSummary, error) {
	stats, err := s.monthTotals(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	sum := &MonthSummary{
		Month:          month.Format("2006-01"),
		Totals:         stats.Totals,
		HighestIncome:  stats.highestIncome,
		HighestExpense: stats.highestExpense,
	}

	days := decimal.NewFromInt(int64(s.elapsedDays(month)))
	sum.DailyAverageIncome = sum.Income.Div(days).Round(2)
	sum.DailyAverageExpense = sum.Expenses.Div(days).Round(2)

	prev, err := s.monthTotals(ctx, userID, month.AddDate(0, -1, 0))
	if err != nil {
		return nil, err
	}
	sum.Comparison = Comparison{
		Previous:       prev.Totals,
		IncomeChange:   percentChange(prev.Income, sum.Income),
		ExpensesChange: percentChange(prev.Expenses, sum.Expenses),
	}
	return sum, nil
}

type monthStats struct {
	Totals
	highestIncome  *Entry
	highestExpense *Entry
	// dailyExpenses holds expense magnitude per day with spending
	dailyExpenses map[string]decimal.Decimal
}

// monthTotals streams the month's transactions once.
func (s *Service) monthTotals(ctx context.Context, userID int64, month time.Time) (*monthStats, error) {
	stats := &monthStats{
		Totals:        Totals{Income: decimal.Zero, Expenses: decimal.Zero},
		dailyExpenses: make(map[string]decimal.Decimal),
	}
	var highestIncome, highestExpense *transaction.Transaction

	for tx, err := range s.ledger.All(ctx, transaction.ListFilter{UserID: userID, Month: &month}) {
		if err != nil {
			return nil, err
		}
		switch tx.Type {
		case transaction.TypeIncome:
			stats.Income = stats.Income.Add(tx.Amount)
			stats.IncomeCount++
			if highestIncome == nil || tx.Amount.GreaterThan(highestIncome.Amount) {
				highestIncome = tx
			}
		case transaction.TypeExpense:
			stats.Expenses = stats.Expenses.Add(tx.Amount.Abs())
			stats.ExpenseCount++
			day := tx.Date.Format(time.DateOnly)
			stats.dailyExpenses[day] = stats.dailyExpenses[day].Add(tx.Amount.Abs())
			if highestExpense == nil || tx.Amount.LessThan(highestExpense.Amount) {
				highestExpense = tx
			}
		}
	}
	stats.Net = stats.Income.Sub(stats.Expenses)

	if highestIncome != nil {
		stats.highestIncome = entryOf(highestIncome)
	}
	if highestExpense != nil {
		stats.highestExpense = entryOf(highestExpense)
	}
	return stats, nil
}

func (s *Service) computeIndicators(ctx context.Context, userID int64, month time.Time) (*Indicators, error) {
	stats, err := s.monthTotals(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	ind := &Indicators{
		Month:       month.Format("2006-01"),
		HealthScore: healthScore(stats, len(accounts)),
		Alerts:      []Alert{},
		Suggestions: []Suggestion{},
	}
	if rate, ok := savingsRate(stats.Totals); ok {
		pct := rate.Mul(hundred).Round(2)
		ind.SavingsRate = &pct
		ind.SavingsStatus = savingsStatus(pct)
	}
	days := decimal.NewFromInt(int64(s.elapsedDays(month)))
	ind.DailyAverageExpense = stats.Expenses.Div(days).Round(2)

	for _, acc := range accounts {
		// Credit card balances are debt and are negative by nature.
		if acc.Type == account.TypeCreditCard || !acc.Balance.LessThan(lowBalanceThreshold) {
			continue
		}
		id := acc.ID
		ind.Alerts = append(ind.Alerts, Alert{
			Type:      AlertLowBalance,
			Severity:  "medium",
			Message:   fmt.Sprintf("account %s has a low balance: %s", acc.Name, acc.Balance.StringFixed(2)),
			AccountID: &id,
		})
	}

	if s.budgets != nil {
		statuses, err := s.budgets.ListBudgets(ctx, userID, month)
		if err != nil {
			return nil, err
		}
		for _, b := range statuses {
			if !b.Exceeded {
				continue
			}
			id := b.CategoryID
			ind.Alerts = append(ind.Alerts, Alert{
				Type:       AlertBudgetExceeded,
				Severity:   "high",
				Message:    fmt.Sprintf("budget of %s exceeded by %s", b.Amount.StringFixed(2), b.Remaining.Neg().StringFixed(2)),
				CategoryID: &id,
			})
		}
	}

	if stats.ExpenseCount > 0 {
		avg := stats.Expenses.Div(decimal.NewFromInt(int64(stats.ExpenseCount)))
		if avg.GreaterThan(highAverageExpense) {
			ind.Suggestions = append(ind.Suggestions, Suggestion{
				ID:          "reduce_expenses",
				Title:       "Review large expenses",
				Description: "Your average expense is above " + highAverageExpense.String() + "; reviewing the largest ones can free up budget.",
			})
		}
	}
	return ind, nil
}

// savingsRate is (income - expenses) / income, undefined without income.
func savingsRate(t Totals) (decimal.Decimal, bool) {
	if !t.Income.IsPositive() {
		return decimal.Zero, false
	}
	return t.Income.Sub(t.Expenses).Div(t.Income), true
}

func savingsStatus(pct decimal.Decimal) Status {
	switch {
	case pct.GreaterThanOrEqual(goodSavingsRate):
		return StatusGood
	case pct.GreaterThanOrEqual(acceptableSavingsRate):
		return StatusWarning
	default:
		return StatusCritical
	}
}

// healthScore starts at 100 and deducts up to 30 points for a low savings
// rate, 20 for erratic daily spending and 10 for holding a single account.
func healthScore(stats *monthStats, accountCount int) int {
	if stats.IncomeCount+stats.ExpenseCount == 0 {
		return neutralHealthScore
	}
	score := 100

	if rate, ok := savingsRate(stats.Totals); ok {
		pct := rate.Mul(hundred)
		switch {
		case pct.GreaterThanOrEqual(goodSavingsRate):
		case pct.GreaterThanOrEqual(acceptableSavingsRate):
			score -= 10
		case !pct.IsNegative():
			score -= 20
		default:
			score -= 30
		}
	}

	if stats.IncomeCount+stats.ExpenseCount >= varianceMinTransactions && len(stats.dailyExpenses) > 0 {
		mean, variance := meanVariance(stats.dailyExpenses)
		switch {
		case variance.GreaterThan(mean):
			score -= 20
		case variance.GreaterThan(mean.Div(decimal.NewFromInt(2))):
			score -= 10
		}
	}

	if accountCount < 2 {
		score -= 10
	}
	return min(max(score, 0), 100)
}

// meanVariance returns the mean and population variance of the values.
func meanVariance(values map[string]decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	n := decimal.NewFromInt(int64(len(values)))
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	mean := sum.Div(n)

	sq := decimal.Zero
	for _, v := range values {
		d := v.Sub(mean)
		sq = sq.Add(d.Mul(d))
	}
	return mean, sq.Div(n)
}

func (s *Service) computeDistribution(ctx context.Context, userID int64, month time.Time, top int) (*CategoryDistribution, error) {
	from, to := period.Month(month)
	totals, err := s.ledger.ExpensesByCategory(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	kind := category.KindExpense
	cats, err := s.categories.ListCategories(ctx, userID, &kind)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	dist := &CategoryDistribution{Month: month.Format("2006-01"), Total: decimal.Zero, Slices: []CategorySlice{}}
	for _, t := range totals {
		dist.Total = dist.Total.Add(t.Total)
	}

	var others *CategorySlice
	for i, t := range totals {
		if i < top {
			id := t.CategoryID
			dist.Slices = append(dist.Slices, CategorySlice{
				CategoryID: &id,
				Name:       names[t.CategoryID],
				Amount:     t.Total,
				Count:      t.Count,
			})
			continue
		}
		if others == nil {
			others = &CategorySlice{Name: othersLabel, Amount: decimal.Zero}
		}
		others.Amount = others.Amount.Add(t.Total)
		others.Count += t.Count
	}
	if others != nil {
		dist.Slices = append(dist.Slices, *others)
	}

	for i := range dist.Slices {
		dist.Slices[i].Percentage = share(dist.Slices[i].Amount, dist.Total)
	}
	return dist, nil
}

// computeEvolution walks backwards from the current consolidated balance:
// the opening balance on `from` is the current total minus every
// transaction dated on or after `from`.
func (s *Service) computeEvolution(ctx context.Context, userID int64, from, to time.Time, granularity Granularity) (*Evolution, error) {
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := decimal.Zero
	for _, acc := range accounts {
		current = current.Add(acc.Balance)
	}

	daily := make(map[string]decimal.Decimal)
	since := decimal.Zero
	for tx, err := range s.ledger.All(ctx, transaction.ListFilter{UserID: userID, From: &from}) {
		if err != nil {
			return nil, err
		}
		since = since.Add(tx.Amount)
		day := tx.Date.Format(time.DateOnly)
		daily[day] = daily[day].Add(tx.Amount)
	}

	running := current.Sub(since)
	ev := &Evolution{From: from, To: to, Granularity: granularity}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		running = running.Add(daily[d.Format(time.DateOnly)])
		if granularity == GranularityDaily || d.Equal(to) || d.Equal(period.MonthEnd(d)) {
			ev.Points = append(ev.Points, Point{Date: d, Balance: running})
		}
	}

	first, last := ev.Points[0].Balance, ev.Points[len(ev.Points)-1].Balance
	ev.Change = last.Sub(first)
	ev.Trend = trendOf(first, last)
	return ev, nil
}

// trendOf is growing or declining when the series moved more than 1% of its
// starting value, stable otherwise.
func trendOf(first, last decimal.Decimal) Trend {
	change := last.Sub(first)
	if first.IsZero() {
		switch change.Sign() {
		case 1:
			return TrendGrowing
		case -1:
			return TrendDeclining
		}
		return TrendStable
	}

	pct := change.Div(first.Abs()).Mul(hundred)
	switch {
	case pct.GreaterThan(trendThreshold):
		return TrendGrowing
	case pct.LessThan(trendThreshold.Neg()):
		return TrendDeclining
	default:
		return TrendStable
	}
}

func percentChange(previous, current decimal.Decimal) *decimal.Decimal {
	if previous.IsZero() {
		return nil
	}
	pct := current.Sub(previous).Div(previous.Abs()).Mul(hundred).Round(2)
	return &pct
}

func share(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred).Round(2)
}

// elapsedDays is the number of days of month that have happened, so the
// current month's averages are not diluted by days still to come.
func (s *Service) elapsedDays(month time.Time) int {
	today := period.Day(s.now())
	if period.MonthStart(today).Equal(period.MonthStart(month)) {
		return today.Day()
	}
	return period.DaysIn(month)
}

func (s *Service) monthOrCurrent(month time.Time) time.Time {
	if month.IsZero() {
		month = s.now()
	}
	return period.MonthStart(month)
}
