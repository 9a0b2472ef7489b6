package http

import (
	"net/http"
	"sync/atomic"

	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
)

type expenseResponse struct {
	Expense expenseDTO `json:"expense"`
	Spent   core.Money `json:"spent"`
	Limit   core.Money `json:"limit"`
	Over    bool       `json:"over"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, log.OpAppend, err)
		return
	}
	amount, err := req.amount()
	if err != nil {
		writeServiceError(w, r, log.OpAppend, err)
		return
	}
	loc := s.svc.Summaries.Location()
	at, err := ParseDate(req.Date, loc)
	if err != nil {
		writeServiceError(w, r, log.OpAppend, err)
		return
	}

	out, err := s.svc.Expenses.AddExpense(r.Context(), s.owner(r), services.NewExpense{
		CategoryID: sanitizeInput(req.CategoryID),
		Amount:     amount,
		Note:       sanitizeInput(req.Note),
		OccurredAt: at,
	})
	if err != nil {
		writeServiceError(w, r, log.OpAppend, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.totalExpenses, 1)
	if out.Over {
		atomic.AddInt64(&s.appMetrics.overBudget, 1)
	}

	NewJSONResponse().Status(http.StatusCreated).Body(expenseResponse{
		Expense: toExpenseDTO(out.Expense, loc),
		Spent:   out.Spent,
		Limit:   out.Limit,
		Over:    out.Over,
	}).Write(w)
}
