package dashboard

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/account"
	"ledger/internal/domain/budget"
	"ledger/internal/domain/category"
	"ledger/internal/domain/transaction"
	"ledger/internal/shared/period"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

type accountsFunc func(ctx context.Context, userID int64) ([]*account.Account, error)

func (f accountsFunc) ListAccounts(ctx context.Context, userID int64) ([]*account.Account, error) {
	return f(ctx, userID)
}

type categoriesFunc func(ctx context.Context, userID int64, kind *category.Kind) ([]*category.Category, error)

func (f categoriesFunc) ListCategories(ctx context.Context, userID int64, kind *category.Kind) ([]*category.Category, error) {
	return f(ctx, userID, kind)
}

// fakeLedger answers reads from a fixed set of transactions.
type fakeLedger struct {
	txs       []*transaction.Transaction
	allCalls  atomic.Int32
	listCalls atomic.Int32
}

func (l *fakeLedger) match(f transaction.ListFilter, tx *transaction.Transaction) bool {
	if f.Month != nil {
		from, to := period.Month(*f.Month)
		if tx.Date.Before(from) || tx.Date.After(to) {
			return false
		}
	}
	if f.From != nil && tx.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.Date.After(*f.To) {
		return false
	}
	return true
}

func (l *fakeLedger) List(ctx context.Context, f transaction.ListFilter) (*transaction.Page, error) {
	l.listCalls.Add(1)
	sorted := slices.Clone(l.txs)
	slices.SortFunc(sorted, func(a, b *transaction.Transaction) int { return b.Date.Compare(a.Date) })
	if len(sorted) > f.Limit {
		sorted = sorted[:f.Limit]
	}
	return &transaction.Page{Items: sorted, Limit: f.Limit}, nil
}

func (l *fakeLedger) All(ctx context.Context, f transaction.ListFilter) iter.Seq2[*transaction.Transaction, error] {
	l.allCalls.Add(1)
	return func(yield func(*transaction.Transaction, error) bool) {
		for _, tx := range l.txs {
			if l.match(f, tx) && !yield(tx, nil) {
				return
			}
		}
	}
}

func (l *fakeLedger) ExpensesByCategory(ctx context.Context, userID int64, from, to time.Time) ([]transaction.CategoryTotal, error) {
	sums := map[uuid.UUID]*transaction.CategoryTotal{}
	for _, tx := range l.txs {
		if tx.Type != transaction.TypeExpense || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		ct, ok := sums[tx.CategoryID]
		if !ok {
			ct = &transaction.CategoryTotal{CategoryID: tx.CategoryID, Total: decimal.Zero}
			sums[tx.CategoryID] = ct
		}
		ct.Total = ct.Total.Add(tx.Amount.Abs())
		ct.Count++
	}
	out := make([]transaction.CategoryTotal, 0, len(sums))
	for _, ct := range sums {
		out = append(out, *ct)
	}
	slices.SortFunc(out, func(a, b transaction.CategoryTotal) int { return b.Total.Cmp(a.Total) })
	return out, nil
}

// mapCache is an unbounded Cache; failing makes every call error.
type mapCache struct {
	mu          sync.Mutex
	entries     map[Key]any
	generations map[int64]uint64
	failing     bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[Key]any), generations: make(map[int64]uint64)}
}

var errCacheDown = errors.New("cache down")

func (c *mapCache) Get(ctx context.Context, key Key) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, false, errCacheDown
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Generation(ctx context.Context, userID int64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return 0, errCacheDown
	}
	return c.generations[userID], nil
}

func (c *mapCache) Set(ctx context.Context, key Key, gen uint64, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errCacheDown
	}
	if c.generations[key.UserID] == gen {
		c.entries[key] = value
	}
	return nil
}

func (c *mapCache) InvalidateUser(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errCacheDown
	}
	c.generations[userID]++
	for k := range c.entries {
		if k.UserID == userID {
			delete(c.entries, k)
		}
	}
	return nil
}

type fixture struct {
	checking, savings uuid.UUID
	food, rent, fun   uuid.UUID
	salary            uuid.UUID
}

func newTestService(ledger *fakeLedger, cache Cache, balances ...decimal.Decimal) (*Service, fixture) {
	fx := fixture{
		checking: uuid.New(), savings: uuid.New(),
		food: uuid.New(), rent: uuid.New(), fun: uuid.New(), salary: uuid.New(),
	}
	accounts := accountsFunc(func(ctx context.Context, userID int64) ([]*account.Account, error) {
		out := []*account.Account{
			{ID: fx.checking, UserID: userID, Name: "Main", Type: account.TypeChecking, IsPrimary: true},
			{ID: fx.savings, UserID: userID, Name: "Reserve", Type: account.TypeSavings},
		}
		for i := range out {
			out[i].Balance = decimal.Zero
			if i < len(balances) {
				out[i].Balance = balances[i]
			}
		}
		return out, nil
	})
	categories := categoriesFunc(func(ctx context.Context, userID int64, kind *category.Kind) ([]*category.Category, error) {
		return []*category.Category{
			{ID: fx.food, Name: "Alimentação", Kind: category.KindExpense},
			{ID: fx.rent, Name: "Moradia", Kind: category.KindExpense},
			{ID: fx.fun, Name: "Lazer", Kind: category.KindExpense},
		}, nil
	})

	svc := NewService(accounts, ledger, categories, cache)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC) }
	return svc, fx
}

func tx(typ transaction.Type, amount, date string, categoryID uuid.UUID) *transaction.Transaction {
	return &transaction.Transaction{
		ID:          uuid.New(),
		UserID:      1,
		CategoryID:  categoryID,
		Type:        typ,
		Amount:      dec(amount),
		Description: string(typ) + " " + amount,
		Date:        day(date),
	}
}

func TestBalance_ConsolidatesAccounts(t *testing.T) {
	svc, fx := newTestService(&fakeLedger{}, nil, dec("1350.00"), dec("200.50"))

	b, err := svc.Balance(context.Background(), 1)
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if !b.Total.Equal(dec("1550.50")) {
		t.Errorf("Total = %s, want 1550.50", b.Total)
	}
	if !b.ByType[account.TypeSavings].Equal(dec("200.50")) {
		t.Errorf("ByType[savings] = %s", b.ByType[account.TypeSavings])
	}
	if len(b.Accounts) != 2 || b.Accounts[0].ID != fx.checking || !b.Accounts[0].IsPrimary {
		t.Errorf("unexpected accounts: %+v", b.Accounts)
	}
}

func TestMonthSummary(t *testing.T) {
	ledger := &fakeLedger{}
	svc, fx := newTestService(ledger, nil)
	ledger.txs = []*transaction.Transaction{
		tx(transaction.TypeIncome, "500", "2024-02-05", fx.salary),
		tx(transaction.TypeExpense, "-100", "2024-02-07", fx.food),
		tx(transaction.TypeIncome, "1000", "2024-03-01", fx.salary),
		tx(transaction.TypeIncome, "200", "2024-03-04", fx.salary),
		tx(transaction.TypeExpense, "-150", "2024-03-02", fx.food),
		tx(transaction.TypeExpense, "-50", "2024-03-09", fx.fun),
	}

	sum, err := svc.MonthSummary(context.Background(), 1, day("2024-03-20"))
	if err != nil {
		t.Fatalf("MonthSummary() error: %v", err)
	}

	if sum.Month != "2024-03" {
		t.Errorf("Month = %q", sum.Month)
	}
	if !sum.Income.Equal(dec("1200")) || !sum.Expenses.Equal(dec("200")) || !sum.Net.Equal(dec("1000")) {
		t.Errorf("totals = %+v", sum.Totals)
	}
	if sum.IncomeCount != 2 || sum.ExpenseCount != 2 {
		t.Errorf("counts = %d/%d", sum.IncomeCount, sum.ExpenseCount)
	}
	if sum.HighestExpense == nil || !sum.HighestExpense.Amount.Equal(dec("-150")) {
		t.Errorf("HighestExpense = %+v", sum.HighestExpense)
	}
	if sum.HighestIncome == nil || !sum.HighestIncome.Amount.Equal(dec("1000")) {
		t.Errorf("HighestIncome = %+v", sum.HighestIncome)
	}
	// Current month: 10 days elapsed.
	if !sum.DailyAverageIncome.Equal(dec("120")) || !sum.DailyAverageExpense.Equal(dec("20")) {
		t.Errorf("daily averages = %s/%s", sum.DailyAverageIncome, sum.DailyAverageExpense)
	}
	if sum.Comparison.IncomeChange == nil || !sum.Comparison.IncomeChange.Equal(dec("140")) {
		t.Errorf("IncomeChange = %v, want 140", sum.Comparison.IncomeChange)
	}
	if sum.Comparison.ExpensesChange == nil || !sum.Comparison.ExpensesChange.Equal(dec("100")) {
		t.Errorf("ExpensesChange = %v, want 100", sum.Comparison.ExpensesChange)
	}
}

func TestMonthSummary_EmptyPreviousMonthHasNoChange(t *testing.T) {
	ledger := &fakeLedger{}
	svc, fx := newTestService(ledger, nil)
	ledger.txs = []*transaction.Transaction{tx(transaction.TypeIncome, "100", "2024-01-15", fx.salary)}

	sum, err := svc.MonthSummary(context.Background(), 1, day("2024-01-01"))
	if err != nil {
		t.Fatalf("MonthSummary() error: %v", err)
	}
	if sum.Comparison.IncomeChange != nil {
		t.Errorf("IncomeChange = %s, want nil", sum.Comparison.IncomeChange)
	}
	// Past month: averaged over all 31 days.
	if !sum.DailyAverageIncome.Equal(dec("3.23")) {
		t.Errorf("DailyAverageIncome = %s, want 3.23", sum.DailyAverageIncome)
	}
}

func TestExpensesByCategory_FoldsTail(t *testing.T) {
	ledger := &fakeLedger{}
	svc, fx := newTestService(ledger, nil)
	ledger.txs = []*transaction.Transaction{
		tx(transaction.TypeExpense, "-600", "2024-03-01", fx.rent),
		tx(transaction.TypeExpense, "-300", "2024-03-02", fx.food),
		tx(transaction.TypeExpense, "-60", "2024-03-03", fx.food),
		tx(transaction.TypeExpense, "-40", "2024-03-04", fx.fun),
		tx(transaction.TypeIncome, "999", "2024-03-04", fx.salary),
	}

	dist, err := svc.ExpensesByCategory(context.Background(), 1, day("2024-03-01"), 2)
	if err != nil {
		t.Fatalf("ExpensesByCategory() error: %v", err)
	}

	if !dist.Total.Equal(dec("1000")) {
		t.Errorf("Total = %s, want 1000", dist.Total)
	}
	want := []struct {
		name string
		pct  string
	}{
		{"Moradia", "60"},
		{"Alimentação", "36"},
		{othersLabel, "4"},
	}
	if len(dist.Slices) != len(want) {
		t.Fatalf("got %d slices, want %d", len(dist.Slices), len(want))
	}
	for i, w := range want {
		s := dist.Slices[i]
		if s.Name != w.name || !s.Percentage.Equal(dec(w.pct)) {
			t.Errorf("slice %d = %s %s%%, want %s %s%%", i, s.Name, s.Percentage, w.name, w.pct)
		}
	}
	if dist.Slices[2].CategoryID != nil {
		t.Error("others bucket must not carry a category id")
	}
	if dist.Slices[1].Count != 2 {
		t.Errorf("food count = %d, want 2", dist.Slices[1].Count)
	}
}

func TestBalanceEvolution_Daily(t *testing.T) {
	ledger := &fakeLedger{}
	// Current consolidated balance is 1350.
	svc, fx := newTestService(ledger, nil, dec("1350"))
	ledger.txs = []*transaction.Transaction{
		tx(transaction.TypeIncome, "1000", "2024-03-01", fx.salary),
		tx(transaction.TypeExpense, "-150", "2024-03-03", fx.food),
		tx(transaction.TypeIncome, "500", "2024-03-05", fx.salary),
	}

	ev, err := svc.BalanceEvolution(context.Background(), 1, day("2024-03-02"), day("2024-03-04"), GranularityDaily)
	if err != nil {
		t.Fatalf("BalanceEvolution() error: %v", err)
	}

	want := []string{"1000", "850", "850"}
	if len(ev.Points) != len(want) {
		t.Fatalf("got %d points, want %d", len(ev.Points), len(want))
	}
	for i, w := range want {
		if !ev.Points[i].Balance.Equal(dec(w)) {
			t.Errorf("point %s = %s, want %s", ev.Points[i].Date.Format(time.DateOnly), ev.Points[i].Balance, w)
		}
	}
	if !ev.Change.Equal(dec("-150")) || ev.Trend != TrendDeclining {
		t.Errorf("change = %s trend = %s", ev.Change, ev.Trend)
	}
}

func TestBalanceEvolution_Monthly(t *testing.T) {
	ledger := &fakeLedger{}
	svc, fx := newTestService(ledger, nil, dec("300"))
	ledger.txs = []*transaction.Transaction{
		tx(transaction.TypeIncome, "100", "2024-01-10", fx.salary),
		tx(transaction.TypeIncome, "100", "2024-02-10", fx.salary),
		tx(transaction.TypeIncome, "100", "2024-03-05", fx.salary),
	}

	ev, err := svc.BalanceEvolution(context.Background(), 1, day("2024-01-01"), day("2024-03-10"), GranularityMonthly)
	if err != nil {
		t.Fatalf("BalanceEvolution() error: %v", err)
	}
	dates := []string{"2024-01-31", "2024-02-29", "2024-03-10"}
	balances := []string{"100", "200", "300"}
	if len(ev.Points) != 3 {
		t.Fatalf("got %d points, want 3", len(ev.Points))
	}
	for i := range dates {
		p := ev.Points[i]
		if p.Date.Format(time.DateOnly) != dates[i] || !p.Balance.Equal(dec(balances[i])) {
			t.Errorf("point %d = %s %s, want %s %s", i, p.Date.Format(time.DateOnly), p.Balance, dates[i], balances[i])
		}
	}
	if ev.Trend != TrendGrowing {
		t.Errorf("Trend = %s, want growing", ev.Trend)
	}
}

func TestBalanceEvolution_Validation(t *testing.T) {
	svc, _ := newTestService(&fakeLedger{}, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to time.Time
		gran     Granularity
		wantErr  error
	}{
		{"Unknown granularity", day("2024-01-01"), day("2024-01-31"), "hourly", ErrInvalidGranularity},
		{"Inverted range", day("2024-02-01"), day("2024-01-01"), GranularityDaily, transaction.ErrInvalidRange},
		{"Daily range too large", day("2022-01-01"), day("2024-01-01"), GranularityDaily, ErrRangeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BalanceEvolution(ctx, 1, tt.from, tt.to, tt.gran)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := svc.BalanceEvolution(ctx, 1, day("2022-01-01"), day("2024-01-01"), GranularityMonthly); err != nil {
		t.Errorf("monthly evolution over two years should be allowed, got %v", err)
	}
}

func TestTrendOf(t *testing.T) {
	tests := []struct {
		first, last string
		want        Trend
	}{
		{"1000", "1011", TrendGrowing},
		{"1000", "1010", TrendStable},
		{"1000", "989", TrendDeclining},
		{"-1000", "-1020", TrendDeclining},
		{"0", "5", TrendGrowing},
		{"0", "0", TrendStable},
	}
	for _, tt := range tests {
		if got := trendOf(dec(tt.first), dec(tt.last)); got != tt.want {
			t.Errorf("trendOf(%s, %s) = %s, want %s", tt.first, tt.last, got, tt.want)
		}
	}
}

func TestRecentTransactions_Clamped(t *testing.T) {
	ledger := &fakeLedger{}
	svc, fx := newTestService(ledger, nil)
	for i := 1; i <= 60; i++ {
		ledger.txs = append(ledger.txs, tx(transaction.TypeIncome, "1", day("2024-01-01").AddDate(0, 0, i).Format(time.DateOnly), fx.salary))
	}

	got, err := svc.RecentTransactions(context.Background(), 1, 500)
	if err != nil {
		t.Fatalf("RecentTransactions() error: %v", err)
	}
	if len(got) != MaxRecent {
		t.Errorf("got %d entries, want %d", len(got), MaxRecent)
	}

	got, _ = svc.RecentTransactions(context.Background(), 1, 0)
	if len(got) != DefaultRecent {
		t.Errorf("got %d entries, want %d", len(got), DefaultRecent)
	}
}

func TestCache_HitAndInvalidate(t *testing.T) {
	ledger := &fakeLedger{}
	cache := newMapCache()
	svc, fx := newTestService(ledger, cache)
	ledger.txs = []*transaction.Transaction{tx(transaction.TypeIncome, "100", "2024-03-01", fx.salary)}
	ctx := context.Background()

	first, err := svc.MonthSummary(ctx, 1, day("2024-03-01"))
	if err != nil {
		t.Fatalf("MonthSummary() error: %v", err)
	}
	calls := ledger.allCalls.Load()

	if _, err := svc.MonthSummary(ctx, 1, day("2024-03-15")); err != nil {
		t.Fatalf("MonthSummary() error: %v", err)
	}
	if ledger.allCalls.Load() != calls {
		t.Errorf("second read hit the ledger, cache miss")
	}

	ledger.txs = append(ledger.txs, tx(transaction.TypeIncome, "50", "2024-03-02", fx.salary))
	inv := NewInvalidator(cache)
	if err := inv.Publish(ctx, transaction.Event{Type: transaction.EventCreated, UserID: 1}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	after, err := svc.MonthSummary(ctx, 1, day("2024-03-01"))
	if err != nil {
		t.Fatalf("MonthSummary() error: %v", err)
	}
	if !first.Income.Equal(dec("100")) || !after.Income.Equal(dec("150")) {
		t.Errorf("income before/after invalidation = %s/%s, want 100/150", first.Income, after.Income)
	}
}

func TestCache_InvalidateIsPerUser(t *testing.T) {
	cache := newMapCache()
	ctx := context.Background()
	_ = cache.Set(ctx, Key{UserID: 1, View: ViewBalance, Period: "current"}, 0, 1)
	_ = cache.Set(ctx, Key{UserID: 2, View: ViewBalance, Period: "current"}, 0, 2)

	NewInvalidator(cache).UserChanged(ctx, 1)

	if _, ok, _ := cache.Get(ctx, Key{UserID: 1, View: ViewBalance, Period: "current"}); ok {
		t.Error("user 1 entry should be gone")
	}
	if _, ok, _ := cache.Get(ctx, Key{UserID: 2, View: ViewBalance, Period: "current"}); !ok {
		t.Error("user 2 entry should survive")
	}
}

func TestCache_WriteDuringComputeIsNotCached(t *testing.T) {
	cache := newMapCache()
	inv := NewInvalidator(cache)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		balance = dec("1000")
		writes  int
	)
	accounts := accountsFunc(func(ctx context.Context, userID int64) ([]*account.Account, error) {
		mu.Lock()
		read := balance
		// A -150 expense commits right after this read and invalidates.
		if writes == 0 {
			writes++
			balance = balance.Sub(dec("150"))
			mu.Unlock()
			if err := inv.Publish(ctx, transaction.Event{Type: transaction.EventCreated, UserID: userID}); err != nil {
				t.Errorf("Publish() error: %v", err)
			}
		} else {
			mu.Unlock()
		}
		return []*account.Account{{ID: uuid.New(), UserID: userID, Type: account.TypeChecking, Balance: read}}, nil
	})
	svc := NewService(accounts, &fakeLedger{}, nil, cache)

	first, err := svc.Balance(ctx, 1)
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if !first.Total.Equal(dec("1000")) {
		t.Fatalf("first Total = %s, want 1000", first.Total)
	}

	second, err := svc.Balance(ctx, 1)
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if !second.Total.Equal(dec("850")) {
		t.Errorf("Total after the write = %s, want 850", second.Total)
	}
}

func TestCache_FailureFallsBackToCompute(t *testing.T) {
	cache := newMapCache()
	cache.failing = true
	svc, _ := newTestService(&fakeLedger{}, cache, dec("42"))

	b, err := svc.Balance(context.Background(), 1)
	if err != nil {
		t.Fatalf("cache failure must not fail the read: %v", err)
	}
	if !b.Total.Equal(dec("42")) {
		t.Errorf("Total = %s, want 42", b.Total)
	}

	if err := NewInvalidator(cache).InvalidateUser(context.Background(), 1); !errors.Is(err, errCacheDown) {
		t.Errorf("expected wrapped cache error, got %v", err)
	}
}

func TestOverview(t *testing.T) {
	ledger := &fakeLedger{}
	svc, fx := newTestService(ledger, newMapCache(), dec("1350"))
	ledger.txs = []*transaction.Transaction{
		tx(transaction.TypeIncome, "1000", "2024-03-01", fx.salary),
		tx(transaction.TypeExpense, "-150", "2024-03-03", fx.food),
	}

	ov, err := svc.Overview(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Overview() error: %v", err)
	}
	if ov.Balance == nil || ov.Summary == nil || ov.Expenses == nil {
		t.Fatalf("incomplete overview: %+v", ov)
	}
	if ov.Summary.Month != "2024-03" {
		t.Errorf("default month = %s, want current 2024-03", ov.Summary.Month)
	}
	if len(ov.Recent) != 2 || len(ov.Expenses.Slices) != 1 {
		t.Errorf("recent=%d slices=%d", len(ov.Recent), len(ov.Expenses.Slices))
	}
}

// statsOf builds month stats with one income and txCount-1 expenses.
func statsOf(income, expenses string, txCount int, daily ...string) *monthStats {
	st := &monthStats{
		Totals:        Totals{Income: dec(income), Expenses: dec(expenses)},
		dailyExpenses: map[string]decimal.Decimal{},
	}
	if txCount > 0 {
		st.IncomeCount, st.ExpenseCount = 1, txCount-1
	}
	for i, d := range daily {
		st.dailyExpenses[day("2024-03-01").AddDate(0, 0, i).Format(time.DateOnly)] = dec(d)
	}
	return st
}

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name     string
		stats    *monthStats
		accounts int
		want     int
	}{
		{"No transactions is neutral", statsOf("0", "0", 0), 1, 50},
		{"Saving 20% keeps every point", statsOf("1000", "800", 2), 2, 100},
		{"Saving 19% loses 10", statsOf("1000", "810", 2), 2, 90},
		{"Saving 10% loses 10", statsOf("1000", "900", 2), 2, 90},
		{"Saving 0% loses 20", statsOf("1000", "1000", 2), 2, 80},
		{"Overspending loses 30", statsOf("1000", "1001", 2), 2, 70},
		{"No income skips the savings rule", statsOf("0", "500", 2), 2, 100},
		{"Single account loses 10", statsOf("1000", "800", 2), 1, 90},
		{"Steady daily spending", statsOf("1000", "300", 5, "100", "100", "100"), 2, 100},
		{"Variance above half the mean loses 10", statsOf("1000", "200", 5, "92", "108"), 2, 90},
		{"Variance at half the mean keeps points", statsOf("1000", "200", 5, "95", "105"), 2, 100},
		{"Variance above the mean loses 20", statsOf("1000", "200", 5, "10", "190"), 2, 80},
		{"Variance ignored below five transactions", statsOf("1000", "200", 4, "10", "190"), 2, 100},
		{"Worst case", statsOf("100", "400", 6, "10", "390"), 1, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := healthScore(tt.stats, tt.accounts); got != tt.want {
				t.Errorf("healthScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSavingsStatus(t *testing.T) {
	tests := []struct {
		pct  string
		want Status
	}{
		{"20", StatusGood},
		{"19.99", StatusWarning},
		{"10", StatusWarning},
		{"9.99", StatusCritical},
		{"-5", StatusCritical},
	}
	for _, tt := range tests {
		if got := savingsStatus(dec(tt.pct)); got != tt.want {
			t.Errorf("savingsStatus(%s) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

type budgetsFunc func(ctx context.Context, userID int64, month time.Time) ([]*budget.Status, error)

func (f budgetsFunc) ListBudgets(ctx context.Context, userID int64, month time.Time) ([]*budget.Status, error) {
	return f(ctx, userID, month)
}

func TestIndicators(t *testing.T) {
	ledger := &fakeLedger{}
	cache := newMapCache()
	svc, fx := newTestService(ledger, cache, dec("1350"), dec("40"))
	svc.budgets = budgetsFunc(func(ctx context.Context, userID int64, month time.Time) ([]*budget.Status, error) {
		if month.Format("2006-01") != "2024-03" {
			t.Errorf("budgets listed for %s, want 2024-03", month.Format("2006-01"))
		}
		return []*budget.Status{
			{Budget: budget.Budget{CategoryID: fx.rent, Amount: dec("500")}, Spent: dec("600"), Remaining: dec("-100"), Exceeded: true},
			{Budget: budget.Budget{CategoryID: fx.food, Amount: dec("500")}, Spent: dec("100"), Remaining: dec("400")},
		}, nil
	})
	ledger.txs = []*transaction.Transaction{
		tx(transaction.TypeIncome, "1000", "2024-03-01", fx.salary),
		tx(transaction.TypeExpense, "-600", "2024-03-02", fx.rent),
		tx(transaction.TypeExpense, "-100", "2024-03-05", fx.food),
	}
	ctx := context.Background()

	ind, err := svc.Indicators(ctx, 1, time.Time{})
	if err != nil {
		t.Fatalf("Indicators() error: %v", err)
	}

	if ind.Month != "2024-03" {
		t.Errorf("Month = %s, want 2024-03", ind.Month)
	}
	// Saving 30%, fewer than five transactions, two accounts.
	if ind.HealthScore != 100 {
		t.Errorf("HealthScore = %d, want 100", ind.HealthScore)
	}
	if ind.SavingsRate == nil || !ind.SavingsRate.Equal(dec("30")) || ind.SavingsStatus != StatusGood {
		t.Errorf("savings = %v %s, want 30 good", ind.SavingsRate, ind.SavingsStatus)
	}
	// 700 spent over the 10 elapsed days.
	if !ind.DailyAverageExpense.Equal(dec("70")) {
		t.Errorf("DailyAverageExpense = %s, want 70", ind.DailyAverageExpense)
	}

	if len(ind.Alerts) != 2 {
		t.Fatalf("alerts = %+v, want low balance and budget exceeded", ind.Alerts)
	}
	if a := ind.Alerts[0]; a.Type != AlertLowBalance || a.AccountID == nil || *a.AccountID != fx.savings {
		t.Errorf("first alert = %+v, want low balance on the savings account", a)
	}
	if a := ind.Alerts[1]; a.Type != AlertBudgetExceeded || a.CategoryID == nil || *a.CategoryID != fx.rent {
		t.Errorf("second alert = %+v, want exceeded rent budget", a)
	}
	// Average expense is 350.
	if len(ind.Suggestions) != 1 || ind.Suggestions[0].ID != "reduce_expenses" {
		t.Errorf("suggestions = %+v", ind.Suggestions)
	}

	calls := ledger.allCalls.Load()
	if _, err := svc.Indicators(ctx, 1, day("2024-03-31")); err != nil {
		t.Fatalf("Indicators() error: %v", err)
	}
	if ledger.allCalls.Load() != calls {
		t.Error("second read recomputed, want a cache hit")
	}
}

func TestIndicators_WithoutBudgets(t *testing.T) {
	svc, _ := newTestService(&fakeLedger{}, nil, dec("1000"))

	ind, err := svc.Indicators(context.Background(), 1, day("2024-02-01"))
	if err != nil {
		t.Fatalf("Indicators() error: %v", err)
	}
	if ind.HealthScore != neutralHealthScore || ind.SavingsRate != nil {
		t.Errorf("empty month = %+v, want neutral score and no savings rate", ind)
	}
	// The second account has a zero balance.
	if len(ind.Alerts) != 1 || ind.Alerts[0].Type != AlertLowBalance {
		t.Errorf("alerts = %+v", ind.Alerts)
	}
}
