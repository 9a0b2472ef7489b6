package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/core"
	"budgeteer/internal/dbx"
)

type Repository struct {
	db     dbx.DBTX
	closer io.Closer
}

func NewRepository(db dbx.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if p, ok := r.db.(interface{ PingContext(context.Context) error }); ok {
		return p.PingContext(ctx)
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	query :=
		`SELECT id, owner_id, name, color FROM categories
		 WHERE owner_id = $1
		 ORDER BY name, created_at`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *Repository) GetCategory(ctx context.Context, ownerID, id string) (core.Category, error) {
	if uuid.Validate(id) != nil {
		return core.Category{}, core.ErrNotFound
	}
	query :=
		`SELECT id, owner_id, name, color FROM categories
		 WHERE id = $1 AND owner_id = $2`

	var c core.Category
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, core.ErrNotFound
		}
		return core.Category{}, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	query :=
		`INSERT INTO categories (id, owner_id, name, color)
		 VALUES ($1, $2, $3, $4)`

	c.ID = uuid.NewString()
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.OwnerID, c.Name, c.Color); err != nil {
		return core.Category{}, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if uuid.Validate(c.ID) != nil {
		return core.Category{}, core.ErrNotFound
	}
	query :=
		`UPDATE categories SET name = $1, color = $2
		 WHERE id = $3 AND owner_id = $4`

	res, err := r.db.ExecContext(ctx, query, c.Name, c.Color, c.ID, c.OwnerID)
	if err != nil {
		return core.Category{}, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Category{}, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, ownerID, id string) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, nil
	}
	query := `DELETE FROM categories WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) UpsertBudget(ctx context.Context, b core.Budget) error {
	query :=
		`INSERT INTO budgets (id, owner_id, category_id, year, month, amount_cents)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (owner_id, category_id, year, month)
		 DO UPDATE SET amount_cents = EXCLUDED.amount_cents`

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.OwnerID, b.CategoryID, b.Period.Year, b.Period.Month, b.Amount.Cents)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *Repository) BudgetsForPeriod(ctx context.Context, ownerID string, p core.Period) ([]core.Budget, error) {
	query :=
		`SELECT id, owner_id, category_id, year, month, amount_cents FROM budgets
		 WHERE owner_id = $1 AND year = $2 AND month = $3`

	rows, err := r.db.QueryContext(ctx, query, ownerID, p.Year, p.Month)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Period.Year, &b.Period.Month, &b.Amount.Cents); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *Repository) BudgetFor(ctx context.Context, ownerID, categoryID string, p core.Period) (core.Budget, error) {
	if uuid.Validate(categoryID) != nil {
		return core.Budget{}, core.ErrNotFound
	}
	query :=
		`SELECT id, owner_id, category_id, year, month, amount_cents FROM budgets
		 WHERE owner_id = $1 AND category_id = $2 AND year = $3 AND month = $4`

	var b core.Budget
	err := r.db.QueryRowContext(ctx, query, ownerID, categoryID, p.Year, p.Month).
		Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Period.Year, &b.Period.Month, &b.Amount.Cents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Budget{}, core.ErrNotFound
		}
		return core.Budget{}, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func (r *Repository) AppendExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	query :=
		`INSERT INTO expenses (id, owner_id, category_id, amount_cents, note, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	e.ID = uuid.NewString()
	e.OccurredAt = e.OccurredAt.Truncate(time.Microsecond)
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.OwnerID, e.CategoryID, e.Amount.Cents, e.Note, e.OccurredAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *Repository) SumByCategory(ctx context.Context, ownerID, categoryID string, from, to time.Time) (core.Money, error) {
	if uuid.Validate(categoryID) != nil {
		return core.Money{}, nil
	}
	query :=
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE owner_id = $1 AND category_id = $2 AND occurred_at >= $3 AND occurred_at < $4`

	var sum int64
	if err := r.db.QueryRowContext(ctx, query, ownerID, categoryID, from, to).Scan(&sum); err != nil {
		return core.Money{}, fmt.Errorf("db error: %w", err)
	}
	return core.Money{Cents: sum}, nil
}

func (r *Repository) SumsByCategory(ctx context.Context, ownerID string, from, to time.Time) (map[string]core.Money, error) {
	query :=
		`SELECT category_id, COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE owner_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		 GROUP BY category_id`

	rows, err := r.db.QueryContext(ctx, query, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := map[string]core.Money{}
	for rows.Next() {
		var id string
		var sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out[id] = core.Money{Cents: sum}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *Repository) ListByCategory(ctx context.Context, ownerID, categoryID string, from, to time.Time) ([]core.Expense, error) {
	if uuid.Validate(categoryID) != nil {
		return []core.Expense{}, nil
	}
	query :=
		`SELECT id, owner_id, category_id, amount_cents, note, occurred_at FROM expenses
		 WHERE owner_id = $1 AND category_id = $2 AND occurred_at >= $3 AND occurred_at < $4
		 ORDER BY occurred_at DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID, categoryID, from, to)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.CategoryID, &e.Amount.Cents, &e.Note, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
