package http

import (
	"net/http"
	"strings"

	"budgeteer/internal/core"
	"budgeteer/internal/log"
)

// handleDashboard defaults to the current month.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now(), s.svc.Summaries.Location())
	if err != nil {
		writeServiceError(w, r, log.OpSummary, err)
		return
	}
	s.writeSummary(w, r, p)
}

// handleReport serves the same rows as the dashboard but needs an explicit
// month and year.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	for _, field := range []string{"year", "month"} {
		if strings.TrimSpace(q.Get(field)) == "" {
			BadRequestError(field+" is required", field).Write(w)
			return
		}
	}
	p, err := ParsePeriod(q, s.now(), s.svc.Summaries.Location())
	if err != nil {
		writeServiceError(w, r, log.OpSummary, err)
		return
	}
	s.writeSummary(w, r, p)
}

func (s *Server) writeSummary(w http.ResponseWriter, r *http.Request, p core.Period) {
	summary, err := s.svc.Summaries.ComputePeriodSummary(r.Context(), s.owner(r), p)
	if err != nil {
		writeServiceError(w, r, log.OpSummary, err)
		return
	}
	NewJSONResponse().Body(toSummaryDTO(summary)).Write(w)
}
