package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"ledger/internal/domain/account"
)

type AccountHandler struct {
	accountService *account.Service
}

func NewAccountHandler(accountService *account.Service) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// HTTP request types (transport layer concerns)
type CreateAccountRequest struct {
	Name           string          `json:"name"`
	Type           account.Type    `json:"type"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	IsPrimary      bool            `json:"isPrimary"`
}

type UpdateAccountRequest struct {
	Name *string       `json:"name,omitempty"`
	Type *account.Type `json:"type,omitempty"`
}

// Register mounts the account routes on mux.
func (h *AccountHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/accounts", h.HandleListAccounts)
	mux.HandleFunc("POST /api/accounts", h.HandleCreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", h.HandleGetAccount)
	mux.HandleFunc("PATCH /api/accounts/{id}", h.HandleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", h.HandleDeleteAccount)
	mux.HandleFunc("POST /api/accounts/{id}/primary", h.HandleSetPrimary)
}

// HandleListAccounts returns all accounts of the authenticated user, primary first
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	accounts, err := h.accountService.ListAccounts(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CreateAccountRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.accountService.CreateAccount(r.Context(), account.CreateParams{
		UserID:         userID,
		Name:           req.Name,
		Type:           req.Type,
		InitialBalance: req.InitialBalance,
		IsPrimary:      req.IsPrimary,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
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

	acc, err := h.accountService.GetAccount(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleUpdateAccount renames or retypes an account. The balance is owned by
// the ledger and cannot be patched.
func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateAccountRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.accountService.UpdateAccount(r.Context(), userID, id, account.UpdateParams{
		Name: req.Name,
		Type: req.Type,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *AccountHandler) HandleSetPrimary(w http.ResponseWriter, r *http.Request) {
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

	acc, err := h.accountService.SetPrimary(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
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

	if err := h.accountService.DeleteAccount(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
