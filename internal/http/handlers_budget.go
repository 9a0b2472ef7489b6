package http

import (
	"net/http"

	"budgeteer/internal/log"
)

func (s *Server) handleGetBudgets(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now(), s.svc.Summaries.Location())
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	rows, err := s.svc.Budgets.GetBudgets(r.Context(), s.owner(r), p)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	out := make([]budgetDTO, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBudgetDTO(b))
	}
	NewJSONResponse().Body(out).Write(w)
}

// handleSaveBudgets upserts every entry for the period. Repeating the same
// request leaves the same state.
func (s *Server) handleSaveBudgets(w http.ResponseWriter, r *http.Request) {
	var req budgetsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, log.OpUpsert, err)
		return
	}
	p, err := periodFromHTTP(req.Year, req.Month)
	if err != nil {
		writeServiceError(w, r, log.OpUpsert, err)
		return
	}
	res, err := s.svc.Budgets.SetBudgets(r.Context(), s.owner(r), p, req.entries())
	if err != nil {
		writeServiceError(w, r, log.OpUpsert, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"success": true,
		"saved":   res.Saved,
		"skipped": res.Skipped,
	}).Write(w)
}
