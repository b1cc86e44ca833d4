package http

import (
	"net/http"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/log"
	"github.com/dhishan/family-expense-tracker/internal/services"
)

// handleCreateExpense stores the expense and answers 201. Budget alerts run
// inside the service after the write and never fail the request.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, user core.User) {
	if _, ok := requireFamily(w, r, user); !ok {
		return
	}
	var in core.ExpenseInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Merchant = sanitizePtr(in.Merchant)

	expense, err := s.svc.Expenses.Create(r.Context(), user, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.FieldFamilyID, expense.FamilyID,
		log.FieldExpenseID, expense.ID)
	writeJSON(w, http.StatusCreated, expense)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}

	q := newQueryParams(r)
	page := q.Int("page", 1)
	pageSize := q.Int("page_size", services.DefaultPageSize)
	filters := core.ExpenseFilters{
		StartDate:     q.Date("start_date"),
		EndDate:       q.Date("end_date"),
		Category:      q.String("category"),
		Beneficiary:   q.String("beneficiary"),
		PaymentMethod: core.PaymentMethod(q.String("payment_method")),
		MinAmount:     q.Float("min_amount"),
		MaxAmount:     q.Float("max_amount"),
		Search:        sanitizeInput(q.String("search")),
	}
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	if filters.PaymentMethod != "" && !filters.PaymentMethod.IsValid() {
		writeError(w, r, core.ErrInvalidPayment)
		return
	}

	result, err := s.svc.Expenses.List(r.Context(), familyID, filters, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	q := newQueryParams(r)
	start, end := q.Date("start_date"), q.Date("end_date")
	beneficiary := q.String("beneficiary")
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.svc.Expenses.Summary(r.Context(), familyID, start, end, beneficiary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	expense, err := s.svc.Expenses.Get(r.Context(), familyID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	var in core.ExpenseUpdate
	if err := s.decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Description = sanitizePtr(in.Description)
	in.Merchant = sanitizePtr(in.Merchant)

	expense, err := s.svc.Expenses.Update(r.Context(), familyID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, user core.User) {
	familyID, ok := requireFamily(w, r, user)
	if !ok {
		return
	}
	if err := s.svc.Expenses.Delete(r.Context(), familyID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
