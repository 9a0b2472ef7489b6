package http

import (
	"net/http"

	"budgeteer/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories.List(r.Context(), s.owner(r))
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryDTO(c))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	c, err := s.svc.Categories.Create(r.Context(), s.owner(r), sanitizeInput(req.Name), sanitizeInput(req.Color))
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toCategoryDTO(c)).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	c, err := s.svc.Categories.Update(r.Context(), s.owner(r), r.PathValue("id"), sanitizeInput(req.Name), sanitizeInput(req.Color))
	if err != nil {
		writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toCategoryDTO(c)).Write(w)
}

// handleDeleteCategory answers 204 whether or not the category existed.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Categories.Delete(r.Context(), s.owner(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleCategoryExpenses is the category detail view: the category's row of
// the period summary plus its expenses, newest first. Unknown categories
// yield a null row and no expenses.
func (s *Server) handleCategoryExpenses(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now(), s.svc.Summaries.Location())
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	d, err := s.svc.Summaries.CategoryDetail(r.Context(), s.owner(r), r.PathValue("id"), p)
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}

	var row *rowDTO
	if d.Row != nil {
		dto := toRowDTO(*d.Row)
		row = &dto
	}
	NewJSONResponse().Body(struct {
		Year     int          `json:"year"`
		Month    int          `json:"month"`
		Row      *rowDTO      `json:"row"`
		Expenses []expenseDTO `json:"expenses"`
	}{
		Year:     p.Year,
		Month:    p.Month + 1,
		Row:      row,
		Expenses: toExpenseDTOs(d.Expenses, s.svc.Summaries.Location()),
	}).Write(w)
}
