package core

// AggregateRow is one category line of a period summary.
type AggregateRow struct {
	CategoryID string
	Name       string
	Color      string
	Budget     Money
	Spent      Money
	Remaining  Money
}

type Totals struct {
	Budget    Money
	Spent     Money
	Remaining Money
}

// PeriodSummary is the budget versus spend view shared by the dashboard,
// reports and exports.
type PeriodSummary struct {
	Period Period
	Rows   []AggregateRow
	Totals Totals
}

// Over reports whether the row spent more than its (non-zero) budget.
func (r AggregateRow) Over() bool {
	return CheckOverBudget(r.Budget, r.Spent)
}

// BuildPeriodSummary joins the three snapshots of a period into summary rows.
//
// The row set is exactly the category list, in its order. Budgets and spend
// keyed by categories missing from the list are ignored. Missing entries
// default to zero.
func BuildPeriodSummary(p Period, categories []Category, budgets []Budget, spent map[string]Money) PeriodSummary {
	limits := make(map[string]Money, len(budgets))
	for _, b := range budgets {
		limits[b.CategoryID] = b.Amount
	}

	s := PeriodSummary{Period: p, Rows: make([]AggregateRow, 0, len(categories))}
	for _, c := range categories {
		row := AggregateRow{
			CategoryID: c.ID,
			Name:       c.Name,
			Color:      c.Color,
			Budget:     limits[c.ID],
			Spent:      spent[c.ID],
		}
		row.Remaining = row.Budget.Sub(row.Spent)

		s.Totals.Budget = s.Totals.Budget.Add(row.Budget)
		s.Totals.Spent = s.Totals.Spent.Add(row.Spent)
		s.Rows = append(s.Rows, row)
	}
	s.Totals.Remaining = s.Totals.Budget.Sub(s.Totals.Spent)
	return s
}
