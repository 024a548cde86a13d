package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/account"
	"ledger/internal/domain/budget"
	"ledger/internal/domain/category"
	"ledger/internal/domain/dashboard"
	"ledger/internal/domain/goal"
	"ledger/internal/domain/recurring"
	"ledger/internal/domain/transaction"
	"ledger/internal/infrastructure/cache"
	"ledger/internal/infrastructure/memory"
	"ledger/internal/shared/auth"
	"ledger/internal/shared/middleware"
)

const testUser int64 = 42

type testServer struct {
	handler http.Handler
	jwt     *auth.JWT
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	lru := cache.NewLRU(100, time.Minute)
	invalidator := dashboard.NewInvalidator(lru)

	accounts := account.NewService(store.Accounts(), invalidator.UserChanged)
	categories := category.NewService(store.Categories())
	ledger := transaction.NewService(store.Transactions(), accounts, categories,
		transaction.WithPublisher(invalidator))
	if err := categories.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("SeedDefaults() error = %v", err)
	}

	mux := http.NewServeMux()
	NewAccountHandler(accounts).Register(mux)
	NewCategoryHandler(categories).Register(mux)
	NewTransactionHandler(ledger).Register(mux)
	NewRecurringHandler(recurring.NewService(store.Recurring(), ledger, accounts, categories)).Register(mux)
	budgets := budget.NewService(store.Budgets(), ledger, categories, invalidator.UserChanged)
	NewBudgetHandler(budgets).Register(mux)
	NewGoalHandler(goal.NewService(store.Goals())).Register(mux)
	NewDashboardHandler(dashboard.NewService(accounts, ledger, categories, lru,
		dashboard.WithBudgets(budgets))).Register(mux)

	jwt := auth.NewJWT("test-secret")
	token, err := jwt.Generate(testUser, "user@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	return &testServer{
		handler: middleware.Auth(jwt)(mux),
		jwt:     jwt,
		token:   token,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

// expect asserts the status and decodes the body into out when non-nil.
func expect(t *testing.T, rr *httptest.ResponseRecorder, status int, out any) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, status, rr.Body.String())
	}
	if out != nil {
		if err := json.NewDecoder(rr.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func (s *testServer) createAccount(t *testing.T, name, initial string) account.Account {
	t.Helper()
	var acc account.Account
	expect(t, s.do(t, http.MethodPost, "/api/accounts", map[string]any{
		"name":           name,
		"type":           "checking",
		"initialBalance": initial,
	}), http.StatusCreated, &acc)
	return acc
}

func (s *testServer) categoryID(t *testing.T, kind category.Kind, name string) uuid.UUID {
	t.Helper()
	var categories []category.Category
	expect(t, s.do(t, http.MethodGet, "/api/categories?kind="+string(kind), nil), http.StatusOK, &categories)
	for _, c := range categories {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not found", name)
	return uuid.Nil
}

func today() string {
	return time.Now().UTC().Format(time.DateOnly)
}

func mustEqual(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestServer(t)

	acc := s.createAccount(t, "Nubank", "100.50")
	mustEqual(t, "balance", acc.Balance, "100.50")

	expect(t, s.do(t, http.MethodPost, "/api/accounts", map[string]any{
		"name": "nubank", "type": "checking", "initialBalance": "0",
	}), http.StatusConflict, nil)

	var renamed account.Account
	expect(t, s.do(t, http.MethodPatch, "/api/accounts/"+acc.ID.String(), map[string]any{
		"name": "Nubank PJ",
	}), http.StatusOK, &renamed)
	if renamed.Name != "Nubank PJ" {
		t.Errorf("name = %q, want Nubank PJ", renamed.Name)
	}

	other := s.createAccount(t, "Itaú", "0")
	var primary account.Account
	expect(t, s.do(t, http.MethodPost, "/api/accounts/"+other.ID.String()+"/primary", nil), http.StatusOK, &primary)
	if !primary.IsPrimary {
		t.Error("SetPrimary did not mark the account primary")
	}

	var list []account.Account
	expect(t, s.do(t, http.MethodGet, "/api/accounts", nil), http.StatusOK, &list)
	if len(list) != 2 || list[0].ID != other.ID {
		t.Fatalf("list = %+v, want primary account first", list)
	}

	expect(t, s.do(t, http.MethodDelete, "/api/accounts/"+acc.ID.String(), nil), http.StatusNoContent, nil)
	expect(t, s.do(t, http.MethodGet, "/api/accounts/"+acc.ID.String(), nil), http.StatusNotFound, nil)
}

func TestTransactionFlow(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "Carteira", "1000")
	food := s.categoryID(t, category.KindExpense, "Alimentação")
	salary := s.categoryID(t, category.KindIncome, "Salário")

	var expense transaction.Transaction
	expect(t, s.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"accountId":   acc.ID,
		"categoryId":  food,
		"type":        "expense",
		"amount":      "-150",
		"description": "Mercado",
		"date":        today(),
	}), http.StatusCreated, &expense)

	expect(t, s.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"accountId":   acc.ID,
		"categoryId":  salary,
		"type":        "income",
		"amount":      "500",
		"description": "Salário",
		"date":        today(),
	}), http.StatusCreated, nil)

	var got account.Account
	expect(t, s.do(t, http.MethodGet, "/api/accounts/"+acc.ID.String(), nil), http.StatusOK, &got)
	mustEqual(t, "balance after creates", got.Balance, "1350")

	var page transaction.Page
	expect(t, s.do(t, http.MethodGet, "/api/transactions?type=expense&category="+food.String(), nil), http.StatusOK, &page)
	if len(page.Items) != 1 || page.Items[0].ID != expense.ID {
		t.Fatalf("filtered list = %+v, want only the expense", page.Items)
	}

	var copied transaction.Transaction
	expect(t, s.do(t, http.MethodPost, "/api/transactions/"+expense.ID.String()+"/duplicate", nil), http.StatusCreated, &copied)
	if copied.Description != "Mercado (copy)" {
		t.Errorf("copy description = %q", copied.Description)
	}

	expect(t, s.do(t, http.MethodPatch, "/api/transactions/"+copied.ID.String(), map[string]any{
		"amount": "-50",
	}), http.StatusOK, nil)

	// Sign must match the type.
	expect(t, s.do(t, http.MethodPatch, "/api/transactions/"+copied.ID.String(), map[string]any{
		"amount": "50",
	}), http.StatusBadRequest, nil)

	expect(t, s.do(t, http.MethodGet, "/api/accounts/"+acc.ID.String(), nil), http.StatusOK, &got)
	mustEqual(t, "balance after duplicate", got.Balance, "1300")

	expect(t, s.do(t, http.MethodDelete, "/api/accounts/"+acc.ID.String(), nil), http.StatusConflict, nil)

	expect(t, s.do(t, http.MethodDelete, "/api/transactions/"+copied.ID.String(), nil), http.StatusNoContent, nil)
	expect(t, s.do(t, http.MethodGet, "/api/accounts/"+acc.ID.String(), nil), http.StatusOK, &got)
	mustEqual(t, "balance after delete", got.Balance, "1350")
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"invalid path id", http.MethodGet, "/api/accounts/not-a-uuid", nil, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/accounts", "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/accounts", map[string]any{"name": "x", "color": "red"}, http.StatusBadRequest},
		{"invalid account type", http.MethodPost, "/api/accounts", map[string]any{"name": "x", "type": "wallet"}, http.StatusBadRequest},
		{"invalid month", http.MethodGet, "/api/transactions?month=2024-13", nil, http.StatusBadRequest},
		{"invalid from", http.MethodGet, "/api/transactions?from=yesterday", nil, http.StatusBadRequest},
		{"invalid limit", http.MethodGet, "/api/transactions?limit=ten", nil, http.StatusBadRequest},
		{"negative offset", http.MethodGet, "/api/transactions?offset=-1", nil, http.StatusBadRequest},
		{"invalid kind", http.MethodGet, "/api/categories?kind=transfer", nil, http.StatusBadRequest},
		{"invalid transaction account", http.MethodPost, "/api/transactions", map[string]any{"accountId": "x"}, http.StatusBadRequest},
		{"unknown transaction", http.MethodGet, "/api/transactions/" + uuid.NewString(), nil, http.StatusNotFound},
		{"bad granularity", http.MethodGet, "/api/dashboard/balance-evolution?granularity=hourly", nil, http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/api/accounts", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d, body: %s", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "Privada", "10")

	otherToken, err := s.jwt.Generate(testUser+1, "other@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/"+acc.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for another user's account", rr.Code)
	}
}

func TestBudgetsAndGoals(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "Conta", "500")
	food := s.categoryID(t, category.KindExpense, "Alimentação")
	month := time.Now().UTC().Format("2006-01")

	expect(t, s.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"accountId": acc.ID, "categoryId": food, "type": "expense",
		"amount": "-80", "description": "Feira", "date": today(),
	}), http.StatusCreated, nil)

	var status budget.Status
	expect(t, s.do(t, http.MethodPut, "/api/budgets", map[string]any{
		"categoryId": food, "month": month, "amount": "100",
	}), http.StatusOK, &status)
	mustEqual(t, "spent", status.Spent, "80")
	mustEqual(t, "remaining", status.Remaining, "20")
	if status.Exceeded {
		t.Error("budget reported exceeded at 80%")
	}

	var list []budget.Status
	expect(t, s.do(t, http.MethodGet, "/api/budgets?month="+month, nil), http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != status.ID {
		t.Fatalf("budgets = %+v, want the one set", list)
	}

	salary := s.categoryID(t, category.KindIncome, "Salário")
	expect(t, s.do(t, http.MethodPut, "/api/budgets", map[string]any{
		"categoryId": salary, "month": month, "amount": "100",
	}), http.StatusBadRequest, nil)

	var g goal.Goal
	expect(t, s.do(t, http.MethodPost, "/api/goals", map[string]any{
		"name": "Viagem", "targetAmount": "1000", "deadline": "2030-12-31",
	}), http.StatusCreated, &g)

	expect(t, s.do(t, http.MethodPost, "/api/goals/"+g.ID.String()+"/contribute", map[string]any{
		"amount": "250.25",
	}), http.StatusOK, &g)
	mustEqual(t, "current amount", g.CurrentAmount, "250.25")

	expect(t, s.do(t, http.MethodPost, "/api/goals/"+g.ID.String()+"/contribute", map[string]any{
		"amount": "-1",
	}), http.StatusBadRequest, nil)
	expect(t, s.do(t, http.MethodPost, "/api/goals/"+uuid.NewString()+"/contribute", map[string]any{
		"amount": "1",
	}), http.StatusNotFound, nil)

	// Contributions never move account balances.
	var got account.Account
	expect(t, s.do(t, http.MethodGet, "/api/accounts/"+acc.ID.String(), nil), http.StatusOK, &got)
	mustEqual(t, "account balance", got.Balance, "420")
}

func TestRecurringTemplates(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "Conta", "0")
	rent := s.categoryID(t, category.KindExpense, "Moradia")

	var tmpl recurring.Template
	expect(t, s.do(t, http.MethodPost, "/api/recurring", map[string]any{
		"accountId": acc.ID, "categoryId": rent, "description": "Aluguel",
		"amount": "-1200", "type": "expense", "frequency": "monthly",
		"startDate": "2030-01-05",
	}), http.StatusCreated, &tmpl)
	if got := tmpl.NextDueDate.Format(time.DateOnly); got != "2030-01-05" {
		t.Errorf("next due = %s, want 2030-01-05", got)
	}

	expect(t, s.do(t, http.MethodPost, "/api/recurring", map[string]any{
		"accountId": acc.ID, "categoryId": rent, "description": "Aluguel",
		"amount": "-1200", "type": "expense", "frequency": "daily",
		"startDate": "2030-01-05",
	}), http.StatusBadRequest, nil)

	var list []recurring.Template
	expect(t, s.do(t, http.MethodGet, "/api/recurring", nil), http.StatusOK, &list)
	if len(list) != 1 {
		t.Fatalf("templates = %d, want 1", len(list))
	}

	expect(t, s.do(t, http.MethodDelete, "/api/recurring/"+tmpl.ID.String(), nil), http.StatusNoContent, nil)
	expect(t, s.do(t, http.MethodGet, "/api/recurring/"+tmpl.ID.String(), nil), http.StatusNotFound, nil)
}

func TestDashboardInvalidation(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "Conta", "100")
	food := s.categoryID(t, category.KindExpense, "Alimentação")

	var before dashboard.Balance
	expect(t, s.do(t, http.MethodGet, "/api/dashboard/balance", nil), http.StatusOK, &before)
	mustEqual(t, "total before", before.Total, "100")

	expect(t, s.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"accountId": acc.ID, "categoryId": food, "type": "expense",
		"amount": "-30", "description": "Padaria", "date": today(),
	}), http.StatusCreated, nil)

	var after dashboard.Balance
	expect(t, s.do(t, http.MethodGet, "/api/dashboard/balance", nil), http.StatusOK, &after)
	mustEqual(t, "total after", after.Total, "70")

	for _, path := range []string{
		"/api/dashboard/overview",
		"/api/dashboard/summary",
		"/api/dashboard/expenses-by-category?top=3",
		"/api/dashboard/balance-evolution?granularity=monthly",
		"/api/dashboard/recent?limit=5",
		"/api/dashboard/indicators",
	} {
		if rr := s.do(t, http.MethodGet, path, nil); rr.Code != http.StatusOK {
			t.Errorf("GET %s = %d, body: %s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestDashboardIndicators(t *testing.T) {
	s := newTestServer(t)
	acc := s.createAccount(t, "Conta", "100")
	food := s.categoryID(t, category.KindExpense, "Alimentação")

	var empty dashboard.Indicators
	expect(t, s.do(t, http.MethodGet, "/api/dashboard/indicators", nil), http.StatusOK, &empty)
	if empty.HealthScore != 50 || len(empty.Alerts) != 0 {
		t.Errorf("indicators without transactions = %+v, want neutral score and no alerts", empty)
	}

	expect(t, s.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"accountId": acc.ID, "categoryId": food, "type": "expense",
		"amount": "-30", "description": "Padaria", "date": today(),
	}), http.StatusCreated, nil)

	var ind dashboard.Indicators
	expect(t, s.do(t, http.MethodGet, "/api/dashboard/indicators", nil), http.StatusOK, &ind)
	if len(ind.Alerts) != 1 || ind.Alerts[0].Type != dashboard.AlertLowBalance {
		t.Fatalf("alerts = %+v, want one low balance alert", ind.Alerts)
	}
	if ind.SavingsRate != nil {
		t.Errorf("SavingsRate = %s, want none without income", ind.SavingsRate)
	}

	// Setting a budget must invalidate the cached indicators.
	expect(t, s.do(t, http.MethodPut, "/api/budgets", map[string]any{
		"categoryId": food, "month": time.Now().UTC().Format("2006-01"), "amount": "20",
	}), http.StatusOK, nil)

	expect(t, s.do(t, http.MethodGet, "/api/dashboard/indicators", nil), http.StatusOK, &ind)
	var exceeded bool
	for _, a := range ind.Alerts {
		if a.Type == dashboard.AlertBudgetExceeded && a.CategoryID != nil && *a.CategoryID == food {
			exceeded = true
		}
	}
	if !exceeded {
		t.Errorf("alerts = %+v, want a budget exceeded alert for the food category", ind.Alerts)
	}

	expect(t, s.do(t, http.MethodGet, "/api/dashboard/indicators?month=2024-13", nil), http.StatusBadRequest, nil)
}
