package http

import (
	"net/http"
	"time"

	"ledger/internal/domain/dashboard"
)

type DashboardHandler struct {
	dashboardService *dashboard.Service
}

func NewDashboardHandler(dashboardService *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard/overview", h.HandleOverview)
	mux.HandleFunc("GET /api/dashboard/balance", h.HandleBalance)
	mux.HandleFunc("GET /api/dashboard/summary", h.HandleSummary)
	mux.HandleFunc("GET /api/dashboard/expenses-by-category", h.HandleExpensesByCategory)
	mux.HandleFunc("GET /api/dashboard/balance-evolution", h.HandleBalanceEvolution)
	mux.HandleFunc("GET /api/dashboard/recent", h.HandleRecent)
	mux.HandleFunc("GET /api/dashboard/indicators", h.HandleIndicators)
}

// monthRequest reads the authenticated user and the optional ?month.
func monthRequest(r *http.Request) (int64, time.Time, error) {
	userID, err := requestUser(r)
	if err != nil {
		return 0, time.Time{}, err
	}
	month, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		return 0, time.Time{}, err
	}
	return userID, month, nil
}

func (h *DashboardHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	userID, month, err := monthRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	overview, err := h.dashboardService.Overview(r.Context(), userID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *DashboardHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := h.dashboardService.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *DashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, month, err := monthRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.dashboardService.MonthSummary(r.Context(), userID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleExpensesByCategory returns the month's expense distribution; ?top
// sets how many categories are listed before the rest fold into "others".
func (h *DashboardHandler) HandleExpensesByCategory(w http.ResponseWriter, r *http.Request) {
	userID, month, err := monthRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, err := queryInt(r, "top", dashboard.DefaultTopCategories)
	if err != nil {
		writeError(w, r, err)
		return
	}

	distribution, err := h.dashboardService.ExpensesByCategory(r.Context(), userID, month, top)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, distribution)
}

func (h *DashboardHandler) HandleBalanceEvolution(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	var from, to time.Time
	if day, err := parseDay("from", q.Get("from")); err != nil {
		writeError(w, r, err)
		return
	} else if day != nil {
		from = *day
	}
	if day, err := parseDay("to", q.Get("to")); err != nil {
		writeError(w, r, err)
		return
	} else if day != nil {
		to = *day
	}

	evolution, err := h.dashboardService.BalanceEvolution(r.Context(), userID, from, to,
		dashboard.Granularity(q.Get("granularity")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evolution)
}

func (h *DashboardHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := queryInt(r, "limit", dashboard.DefaultRecent)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.dashboardService.RecentTransactions(r.Context(), userID, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *DashboardHandler) HandleIndicators(w http.ResponseWriter, r *http.Request) {
	userID, month, err := monthRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	indicators, err := h.dashboardService.Indicators(r.Context(), userID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indicators)
}
