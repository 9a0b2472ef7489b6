package http

import (
	"strings"
	"time"

	"budgeteer/internal/core"
)

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type categoryDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func toCategoryDTO(c core.Category) categoryDTO {
	return categoryDTO{ID: c.ID, Name: c.Name, Color: c.Color}
}

type budgetDTO struct {
	ID         string     `json:"id"`
	CategoryID string     `json:"categoryId"`
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	Amount     core.Money `json:"amount"`
}

func toBudgetDTO(b core.Budget) budgetDTO {
	return budgetDTO{
		ID:         b.ID,
		CategoryID: b.CategoryID,
		Year:       b.Period.Year,
		Month:      b.Period.Month + 1,
		Amount:     b.Amount,
	}
}

type expenseDTO struct {
	ID         string     `json:"id"`
	CategoryID string     `json:"categoryId"`
	Amount     core.Money `json:"amount"`
	Note       string     `json:"note"`
	OccurredAt time.Time  `json:"occurredAt"`
}

func toExpenseDTO(e core.Expense, loc *time.Location) expenseDTO {
	return expenseDTO{
		ID:         e.ID,
		CategoryID: e.CategoryID,
		Amount:     e.Amount,
		Note:       e.Note,
		OccurredAt: e.OccurredAt.In(loc),
	}
}

func toExpenseDTOs(in []core.Expense, loc *time.Location) []expenseDTO {
	out := make([]expenseDTO, 0, len(in))
	for _, e := range in {
		out = append(out, toExpenseDTO(e, loc))
	}
	return out
}

type rowDTO struct {
	CategoryID string     `json:"categoryId"`
	Name       string     `json:"name"`
	Color      string     `json:"color"`
	Budget     core.Money `json:"budget"`
	Spent      core.Money `json:"spent"`
	Remaining  core.Money `json:"remaining"`
	Over       bool       `json:"over"`
}

func toRowDTO(r core.AggregateRow) rowDTO {
	return rowDTO{
		CategoryID: r.CategoryID,
		Name:       r.Name,
		Color:      r.Color,
		Budget:     r.Budget,
		Spent:      r.Spent,
		Remaining:  r.Remaining,
		Over:       r.Over(),
	}
}

type totalsDTO struct {
	TotalBudget    core.Money `json:"totalBudget"`
	TotalSpent     core.Money `json:"totalSpent"`
	TotalRemaining core.Money `json:"totalRemaining"`
}

type summaryDTO struct {
	Year   int       `json:"year"`
	Month  int       `json:"month"`
	Rows   []rowDTO  `json:"rows"`
	Totals totalsDTO `json:"totals"`
}

func toSummaryDTO(s core.PeriodSummary) summaryDTO {
	rows := make([]rowDTO, 0, len(s.Rows))
	for _, r := range s.Rows {
		rows = append(rows, toRowDTO(r))
	}
	return summaryDTO{
		Year:  s.Period.Year,
		Month: s.Period.Month + 1,
		Rows:  rows,
		Totals: totalsDTO{
			TotalBudget:    s.Totals.Budget,
			TotalSpent:     s.Totals.Spent,
			TotalRemaining: s.Totals.Remaining,
		},
	}
}
