package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/domain/transaction"
)

type TransactionHandler struct {
	ledger *transaction.Service
}

func NewTransactionHandler(ledger *transaction.Service) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

type CreateTransactionRequest struct {
	AccountID   string           `json:"accountId"`
	CategoryID  string           `json:"categoryId"`
	Type        transaction.Type `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description"`
	Date        string           `json:"date"` // YYYY-MM-DD
}

// UpdateTransactionRequest is a partial update; omitted fields are kept.
type UpdateTransactionRequest struct {
	AccountID   *string           `json:"accountId,omitempty"`
	CategoryID  *string           `json:"categoryId,omitempty"`
	Type        *transaction.Type `json:"type,omitempty"`
	Amount      *decimal.Decimal  `json:"amount,omitempty"`
	Description *string           `json:"description,omitempty"`
	Date        *string           `json:"date,omitempty"`
}

type DuplicateTransactionRequest struct {
	Date string `json:"date,omitempty"`
}

func (h *TransactionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/transactions", h.HandleListTransactions)
	mux.HandleFunc("POST /api/transactions", h.HandleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", h.HandleGetTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", h.HandleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", h.HandleDeleteTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/duplicate", h.HandleDuplicateTransaction)
}

// HandleListTransactions returns one page of the user's transactions, newest
// first. Filters: month, from, to, category (repeatable or comma separated),
// account, type, limit, offset.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter, err := listFilter(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.ledger.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func listFilter(r *http.Request, userID int64) (transaction.ListFilter, error) {
	q := r.URL.Query()
	filter := transaction.ListFilter{UserID: userID}

	if raw := q.Get("month"); raw != "" {
		month, err := parseMonth(raw)
		if err != nil {
			return filter, err
		}
		filter.Month = &month
	}

	var err error
	if filter.From, err = parseDay("from", q.Get("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseDay("to", q.Get("to")); err != nil {
		return filter, err
	}

	for _, value := range q["category"] {
		for _, raw := range strings.Split(value, ",") {
			if raw = strings.TrimSpace(raw); raw == "" {
				continue
			}
			id, err := parseUUID("category", raw)
			if err != nil {
				return filter, err
			}
			filter.CategoryIDs = append(filter.CategoryIDs, id)
		}
	}

	if raw := q.Get("account"); raw != "" {
		id, err := parseUUID("account", raw)
		if err != nil {
			return filter, err
		}
		filter.AccountID = &id
	}

	if raw := q.Get("type"); raw != "" {
		typ := transaction.Type(raw)
		filter.Type = &typ
	}

	if filter.Limit, err = queryInt(r, "limit", transaction.DefaultPageSize); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CreateTransactionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	params := transaction.CreateParams{
		UserID:      userID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if params.AccountID, err = parseUUID("accountId", req.AccountID); err != nil {
		writeError(w, r, err)
		return
	}
	if params.CategoryID, err = parseUUID("categoryId", req.CategoryID); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDay("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if date != nil {
		params.Date = *date
	}

	tx, err := h.ledger.Create(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
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

	tx, err := h.ledger.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateTransactionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	params := transaction.UpdateParams{
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.AccountID != nil {
		accountID, err := parseUUID("accountId", *req.AccountID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		params.AccountID = &accountID
	}
	if req.CategoryID != nil {
		categoryID, err := parseUUID("categoryId", *req.CategoryID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		params.CategoryID = &categoryID
	}
	if req.Date != nil {
		if params.Date, err = parseDay("date", *req.Date); err != nil {
			writeError(w, r, err)
			return
		}
	}

	tx, err := h.ledger.Update(r.Context(), userID, id, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
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

	if err := h.ledger.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDuplicateTransaction copies a transaction. An empty body copies it
// to today.
func (h *TransactionHandler) HandleDuplicateTransaction(w http.ResponseWriter, r *http.Request) {
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

	var req DuplicateTransactionRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDay("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := h.ledger.Duplicate(r.Context(), userID, id, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

