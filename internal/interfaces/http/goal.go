package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"ledger/internal/domain/goal"
)

type GoalHandler struct {
	goalService *goal.Service
}

func NewGoalHandler(goalService *goal.Service) *GoalHandler {
	return &GoalHandler{goalService: goalService}
}

type CreateGoalRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      string          `json:"deadline,omitempty"`
}

type UpdateGoalRequest struct {
	Name          *string          `json:"name,omitempty"`
	Description   *string          `json:"description,omitempty"`
	TargetAmount  *decimal.Decimal `json:"targetAmount,omitempty"`
	CurrentAmount *decimal.Decimal `json:"currentAmount,omitempty"`
	Deadline      *string          `json:"deadline,omitempty"`
}

type ContributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *GoalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/goals", h.HandleListGoals)
	mux.HandleFunc("POST /api/goals", h.HandleCreateGoal)
	mux.HandleFunc("GET /api/goals/{id}", h.HandleGetGoal)
	mux.HandleFunc("PATCH /api/goals/{id}", h.HandleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", h.HandleDeleteGoal)
	mux.HandleFunc("POST /api/goals/{id}/contribute", h.HandleContribute)
}

func (h *GoalHandler) HandleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	goals, err := h.goalService.ListGoals(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) HandleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CreateGoalRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	deadline, err := parseDay("deadline", req.Deadline)
	if err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.goalService.CreateGoal(r.Context(), goal.CreateParams{
		UserID:        userID,
		Name:          req.Name,
		Description:   req.Description,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		Deadline:      deadline,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GoalHandler) HandleGetGoal(w http.ResponseWriter, r *http.Request) {
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

	g, err := h.goalService.GetGoal(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GoalHandler) HandleUpdateGoal(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateGoalRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	params := goal.UpdateParams{
		Name:          req.Name,
		Description:   req.Description,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
	}
	if req.Deadline != nil {
		if params.Deadline, err = parseDay("deadline", *req.Deadline); err != nil {
			writeError(w, r, err)
			return
		}
	}

	g, err := h.goalService.UpdateGoal(r.Context(), userID, id, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GoalHandler) HandleDeleteGoal(w http.ResponseWriter, r *http.Request) {
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

	if err := h.goalService.DeleteGoal(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleContribute adds money to a goal. It never touches account balances.
func (h *GoalHandler) HandleContribute(w http.ResponseWriter, r *http.Request) {
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

	var req ContributeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.goalService.Contribute(r.Context(), userID, id, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
