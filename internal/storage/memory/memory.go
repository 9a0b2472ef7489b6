// Package memory is an in-process store used for local runs and tests.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/core"
)

type budgetKey struct {
	owner    string
	category string
	period   core.Period
}

type categoryRow struct {
	core.Category
	seq int64
}

type Store struct {
	mu       sync.RWMutex
	seq      int64
	cats     map[string]categoryRow
	budgets  map[budgetKey]core.Budget
	expenses []core.Expense
}

func New() *Store {
	return &Store{
		cats:    map[string]categoryRow{},
		budgets: map[budgetKey]core.Budget{},
	}
}

// NewFromFiles seeds ownerID with the categories listed in
// base/seed_categories.txt, one "name[,color]" per line.
func NewFromFiles(base, ownerID string) *Store {
	s := New()
	if ownerID == "" {
		return s
	}
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		name, color, _ := strings.Cut(line, ",")
		_, _ = s.CreateCategory(context.Background(), core.Category{
			OwnerID: ownerID,
			Name:    strings.TrimSpace(name),
			Color:   strings.TrimSpace(color),
		})
	}
	return s
}

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]core.Category, error) {
	s.mu.RLock()
	rows := make([]categoryRow, 0)
	for _, c := range s.cats {
		if c.OwnerID == ownerID {
			rows = append(rows, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]core.Category, len(rows))
	for i, r := range rows {
		out[i] = r.Category
	}
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, ownerID, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cats[id]
	if !ok || c.OwnerID != ownerID {
		return core.Category{}, core.ErrNotFound
	}
	return c.Category, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	c.ID = uuid.NewString()
	s.cats[c.ID] = categoryRow{Category: c, seq: s.seq}
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.cats[c.ID]
	if !ok || row.OwnerID != c.OwnerID {
		return core.Category{}, core.ErrNotFound
	}
	row.Name, row.Color = c.Name, c.Color
	s.cats[c.ID] = row
	return row.Category, nil
}

func (s *Store) DeleteCategory(_ context.Context, ownerID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cats[id]
	if !ok || c.OwnerID != ownerID {
		return false, nil
	}
	delete(s.cats, id)
	return true, nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) error {
	k := budgetKey{owner: b.OwnerID, category: b.CategoryID, period: b.Period}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.budgets[k]; ok {
		cur.Amount = b.Amount
		s.budgets[k] = cur
		return nil
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.budgets[k] = b
	return nil
}

func (s *Store) BudgetsForPeriod(_ context.Context, ownerID string, p core.Period) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Budget
	for k, b := range s.budgets {
		if k.owner == ownerID && k.period == p {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) BudgetFor(_ context.Context, ownerID, categoryID string, p core.Period) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[budgetKey{owner: ownerID, category: categoryID, period: p}]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) AppendExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.NewString()
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) SumByCategory(_ context.Context, ownerID, categoryID string, from, to time.Time) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum core.Money
	for _, e := range s.expenses {
		if e.OwnerID == ownerID && e.CategoryID == categoryID && inRange(e.OccurredAt, from, to) {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (s *Store) SumsByCategory(_ context.Context, ownerID string, from, to time.Time) (map[string]core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]core.Money{}
	for _, e := range s.expenses {
		if e.OwnerID == ownerID && inRange(e.OccurredAt, from, to) {
			out[e.CategoryID] = out[e.CategoryID].Add(e.Amount)
		}
	}
	return out, nil
}

func (s *Store) ListByCategory(_ context.Context, ownerID, categoryID string, from, to time.Time) ([]core.Expense, error) {
	s.mu.RLock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.OwnerID == ownerID && e.CategoryID == categoryID && inRange(e.OccurredAt, from, to) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
