package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/category"
	"ledger/internal/domain/transaction"
)

type MockRepository struct {
	UpsertFunc      func(ctx context.Context, b *Budget) error
	GetByIDFunc     func(ctx context.Context, userID int64, id uuid.UUID) (*Budget, error)
	ListByMonthFunc func(ctx context.Context, userID int64, month time.Time) ([]*Budget, error)
	DeleteFunc      func(ctx context.Context, userID int64, id uuid.UUID) error
}

func (m *MockRepository) Upsert(ctx context.Context, b *Budget) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, b)
	}
	return nil
}

func (m *MockRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*Budget, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, id)
	}
	return nil, ErrBudgetNotFound
}

func (m *MockRepository) ListByMonth(ctx context.Context, userID int64, month time.Time) ([]*Budget, error) {
	if m.ListByMonthFunc != nil {
		return m.ListByMonthFunc(ctx, userID, month)
	}
	return nil, nil
}

func (m *MockRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

type spendFunc func(ctx context.Context, userID int64, from, to time.Time) ([]transaction.CategoryTotal, error)

func (f spendFunc) ExpensesByCategory(ctx context.Context, userID int64, from, to time.Time) ([]transaction.CategoryTotal, error) {
	return f(ctx, userID, from, to)
}

type categoriesFunc func(ctx context.Context, userID int64, id uuid.UUID) (*category.Category, error)

func (f categoriesFunc) GetCategory(ctx context.Context, userID int64, id uuid.UUID) (*category.Category, error) {
	return f(ctx, userID, id)
}

func expenseCategories(ctx context.Context, userID int64, id uuid.UUID) (*category.Category, error) {
	return &category.Category{ID: id, Kind: category.KindExpense}, nil
}

func TestSetBudget_UpsertsOnMonthStart(t *testing.T) {
	food := uuid.New()
	var stored *Budget
	repo := &MockRepository{
		UpsertFunc: func(ctx context.Context, b *Budget) error {
			stored = b
			return nil
		},
	}
	spend := spendFunc(func(ctx context.Context, userID int64, from, to time.Time) ([]transaction.CategoryTotal, error) {
		if from.Day() != 1 || to.Day() != 31 {
			t.Errorf("unexpected range %v..%v", from, to)
		}
		return []transaction.CategoryTotal{{CategoryID: food, Total: decimal.NewFromInt(150)}}, nil
	})

	svc := NewService(repo, spend, categoriesFunc(expenseCategories))
	status, err := svc.SetBudget(context.Background(), SetParams{
		UserID: 1, CategoryID: food, Month: time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(600),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !stored.Month.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month key = %v, want first of month", stored.Month)
	}
	if !status.Spent.Equal(decimal.NewFromInt(150)) || !status.Remaining.Equal(decimal.NewFromInt(450)) {
		t.Errorf("spent=%s remaining=%s", status.Spent, status.Remaining)
	}
	if !status.PercentUsed.Equal(decimal.NewFromInt(25)) || status.Exceeded {
		t.Errorf("percent=%s exceeded=%v", status.PercentUsed, status.Exceeded)
	}
}

func TestSetBudget_Validation(t *testing.T) {
	income := categoriesFunc(func(ctx context.Context, userID int64, id uuid.UUID) (*category.Category, error) {
		return &category.Category{ID: id, Kind: category.KindIncome}, nil
	})
	month := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		svc     *Service
		params  SetParams
		wantErr error
	}{
		{"zero amount", NewService(&MockRepository{}, nil, categoriesFunc(expenseCategories)),
			SetParams{UserID: 1, CategoryID: uuid.New(), Month: month}, ErrInvalidAmount},
		{"negative amount", NewService(&MockRepository{}, nil, categoriesFunc(expenseCategories)),
			SetParams{UserID: 1, CategoryID: uuid.New(), Month: month, Amount: decimal.NewFromInt(-1)}, ErrInvalidAmount},
		{"missing month", NewService(&MockRepository{}, nil, categoriesFunc(expenseCategories)),
			SetParams{UserID: 1, CategoryID: uuid.New(), Amount: decimal.NewFromInt(1)}, ErrInvalidMonth},
		{"income category", NewService(&MockRepository{}, nil, income),
			SetParams{UserID: 1, CategoryID: uuid.New(), Month: month, Amount: decimal.NewFromInt(1)}, ErrIncomeCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.SetBudget(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestListBudgets_ExceededAndUnspent(t *testing.T) {
	food, fun := uuid.New(), uuid.New()
	month := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := &MockRepository{
		ListByMonthFunc: func(ctx context.Context, userID int64, m time.Time) ([]*Budget, error) {
			return []*Budget{
				{ID: uuid.New(), UserID: userID, CategoryID: food, Month: m, Amount: decimal.NewFromInt(100)},
				{ID: uuid.New(), UserID: userID, CategoryID: fun, Month: m, Amount: decimal.NewFromInt(50)},
			}, nil
		},
	}
	calls := 0
	spend := spendFunc(func(ctx context.Context, userID int64, from, to time.Time) ([]transaction.CategoryTotal, error) {
		calls++
		return []transaction.CategoryTotal{{CategoryID: food, Total: decimal.RequireFromString("120.50")}}, nil
	})

	statuses, err := NewService(repo, spend, nil).ListBudgets(context.Background(), 1, month)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("spend queried %d times, want 1", calls)
	}
	if !statuses[0].Exceeded || !statuses[0].Remaining.Equal(decimal.RequireFromString("-20.50")) {
		t.Errorf("food status %+v", statuses[0])
	}
	if statuses[1].Exceeded || !statuses[1].Spent.IsZero() || !statuses[1].Remaining.Equal(decimal.NewFromInt(50)) {
		t.Errorf("fun status %+v", statuses[1])
	}
}

func TestChangeHooks(t *testing.T) {
	var notified []int64
	hook := func(ctx context.Context, userID int64) {
		notified = append(notified, userID)
	}
	spend := spendFunc(func(ctx context.Context, userID int64, from, to time.Time) ([]transaction.CategoryTotal, error) {
		return nil, nil
	})
	svc := NewService(&MockRepository{}, spend, categoriesFunc(expenseCategories), hook)
	ctx := context.Background()

	if _, err := svc.SetBudget(ctx, SetParams{UserID: 3, CategoryID: uuid.New(), Month: time.Now(), Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("SetBudget() error: %v", err)
	}
	if err := svc.DeleteBudget(ctx, 3, uuid.New()); err != nil {
		t.Fatalf("DeleteBudget() error: %v", err)
	}

	failing := NewService(&MockRepository{DeleteFunc: func(ctx context.Context, userID int64, id uuid.UUID) error {
		return ErrBudgetNotFound
	}}, spend, nil, hook)
	if err := failing.DeleteBudget(ctx, 3, uuid.New()); !errors.Is(err, ErrBudgetNotFound) {
		t.Fatalf("DeleteBudget() error = %v, want ErrBudgetNotFound", err)
	}

	if len(notified) != 2 || notified[0] != 3 || notified[1] != 3 {
		t.Errorf("hook calls = %v, want two for user 3", notified)
	}
}
