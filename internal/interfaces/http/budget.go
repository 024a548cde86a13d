package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"ledger/internal/domain/budget"
)

type BudgetHandler struct {
	budgetService *budget.Service
}

func NewBudgetHandler(budgetService *budget.Service) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

// SetBudgetRequest creates or replaces the budget of a category for a month.
type SetBudgetRequest struct {
	CategoryID string          `json:"categoryId"`
	Month      string          `json:"month"` // YYYY-MM
	Amount     decimal.Decimal `json:"amount"`
}

func (h *BudgetHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/budgets", h.HandleListBudgets)
	mux.HandleFunc("PUT /api/budgets", h.HandleSetBudget)
	mux.HandleFunc("POST /api/budgets", h.HandleSetBudget)
	mux.HandleFunc("GET /api/budgets/{id}", h.HandleGetBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", h.HandleDeleteBudget)
}

// HandleListBudgets returns the budgets of ?month (default current) with
// spend, remaining and usage.
func (h *BudgetHandler) HandleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	budgets, err := h.budgetService.ListBudgets(r.Context(), userID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (h *BudgetHandler) HandleSetBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req SetBudgetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	categoryID, err := parseUUID("categoryId", req.CategoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := parseMonth(req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, err := h.budgetService.SetBudget(r.Context(), budget.SetParams{
		UserID:     userID,
		CategoryID: categoryID,
		Month:      month,
		Amount:     req.Amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *BudgetHandler) HandleGetBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, err := h.budgetService.GetBudget(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *BudgetHandler) HandleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.budgetService.DeleteBudget(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
