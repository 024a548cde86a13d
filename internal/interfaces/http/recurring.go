package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"ledger/internal/domain/recurring"
	"ledger/internal/domain/transaction"
)

type RecurringHandler struct {
	recurringService *recurring.Service
}

func NewRecurringHandler(recurringService *recurring.Service) *RecurringHandler {
	return &RecurringHandler{recurringService: recurringService}
}

type CreateRecurringRequest struct {
	AccountID   string              `json:"accountId"`
	CategoryID  string              `json:"categoryId"`
	Description string              `json:"description"`
	Amount      decimal.Decimal     `json:"amount"`
	Type        transaction.Type    `json:"type"`
	Frequency   recurring.Frequency `json:"frequency"`
	StartDate   string              `json:"startDate"`
	EndDate     string              `json:"endDate,omitempty"`
}

func (h *RecurringHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/recurring", h.HandleListTemplates)
	mux.HandleFunc("POST /api/recurring", h.HandleCreateTemplate)
	mux.HandleFunc("GET /api/recurring/{id}", h.HandleGetTemplate)
	mux.HandleFunc("DELETE /api/recurring/{id}", h.HandleDeleteTemplate)
}

func (h *RecurringHandler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	templates, err := h.recurringService.ListTemplates(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// HandleCreateTemplate registers a template. Occurrences are materialized by
// the scheduler, not by this request.
func (h *RecurringHandler) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CreateRecurringRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	params := recurring.CreateParams{
		UserID:      userID,
		Description: req.Description,
		Amount:      req.Amount,
		Type:        req.Type,
		Frequency:   req.Frequency,
	}
	if params.AccountID, err = parseUUID("accountId", req.AccountID); err != nil {
		writeError(w, r, err)
		return
	}
	if params.CategoryID, err = parseUUID("categoryId", req.CategoryID); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDay("startDate", req.StartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if start != nil {
		params.StartDate = *start
	}
	if params.EndDate, err = parseDay("endDate", req.EndDate); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.recurringService.CreateTemplate(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *RecurringHandler) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
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

	t, err := h.recurringService.GetTemplate(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleDeleteTemplate stops future occurrences. Materialized transactions
// stay in the ledger.
func (h *RecurringHandler) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
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

	if err := h.recurringService.DeleteTemplate(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
