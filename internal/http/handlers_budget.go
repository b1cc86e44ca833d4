package http

import (
	"net/http"

	"github.com/dhishan/family-expense-tracker/internal/core"
)

type budgetListResponse struct {
	Budgets []core.BudgetStatus `json:"budgets"`
	Total   int                 `json:"total"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, user core.User) {
	if _, ok := requireFamily(w, r, user); !ok {
		return
	}
	var in core.BudgetInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Name = sanitizeInput(in.Name)

	budget, err := s.svc.Budgets.Create(r.Context(), user, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, budget)
}

// handleListBudgets returns every budget of the family with its live status.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	statuses, err := s.svc.Budgets.ListWithStatus(r.Context(), familyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if statuses == nil {
		statuses = []core.BudgetStatus{}
	}
	writeJSON(w, http.StatusOK, budgetListResponse{Budgets: statuses, Total: len(statuses)})
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	budget, err := s.svc.Budgets.Get(r.Context(), familyID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	status, err := s.svc.Budgets.Status(r.Context(), familyID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	var in core.BudgetUpdate
	if err := s.decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Name = sanitizePtr(in.Name)

	budget, err := s.svc.Budgets.Update(r.Context(), familyID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	if err := s.svc.Budgets.Delete(r.Context(), familyID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
