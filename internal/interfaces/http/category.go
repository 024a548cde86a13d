package http

import (
	"net/http"

	"ledger/internal/domain/category"
)

type CategoryHandler struct {
	categoryService *category.Service
}

func NewCategoryHandler(categoryService *category.Service) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

type CreateCategoryRequest struct {
	Name string        `json:"name"`
	Kind category.Kind `json:"kind"`
}

func (h *CategoryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/categories", h.HandleListCategories)
	mux.HandleFunc("POST /api/categories", h.HandleCreateCategory)
	mux.HandleFunc("GET /api/categories/{id}", h.HandleGetCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", h.HandleDeleteCategory)
}

// HandleListCategories returns system and user categories, optionally
// filtered by ?kind=income|expense.
func (h *CategoryHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var kind *category.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := category.Kind(raw)
		if k != category.KindIncome && k != category.KindExpense {
			writeError(w, r, category.ErrInvalidKind)
			return
		}
		kind = &k
	}

	categories, err := h.categoryService.ListCategories(r.Context(), userID, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CreateCategoryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.categoryService.CreateCategory(r.Context(), category.CreateParams{
		UserID: userID,
		Name:   req.Name,
		Kind:   req.Kind,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CategoryHandler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
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

	c, err := h.categoryService.GetCategory(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDeleteCategory removes a user category. System categories are
// rejected with 400 and referenced categories with 409.
func (h *CategoryHandler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
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

	if err := h.categoryService.DeleteCategory(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
