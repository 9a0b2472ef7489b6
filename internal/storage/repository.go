// Package storage is the SQLite backend of the budget stores.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/core"
	"budgeteer/internal/dbx"
	"budgeteer/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db     *sql.DB
	conn   dbx.DBTX
	logger *log.Logger
}

// NewSQLiteRepository opens dbPath and migrates it. logger may be nil.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db, conn: db, logger: logger}, nil
}

// sqliteDSN sets per-connection pragmas. The busy timeout lets the parallel
// upserts of one budget save wait for the write lock instead of failing.
func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, owner_id, name, color FROM categories
		 WHERE owner_id = ?
		 ORDER BY name, created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, ownerID, id string) (core.Category, error) {
	var c core.Category
	err := r.conn.QueryRowContext(ctx,
		`SELECT id, owner_id, name, color FROM categories WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = uuid.NewString()
	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO categories (id, owner_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.Color, time.Now().UnixNano())
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	res, err := r.conn.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ? WHERE id = ? AND owner_id = ?`,
		c.Name, c.Color, c.ID, c.OwnerID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, ownerID, id string) (bool, error) {
	res, err := r.conn.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO budgets (id, owner_id, category_id, year, month, amount_cents)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, category_id, year, month)
		 DO UPDATE SET amount_cents = excluded.amount_cents`,
		b.ID, b.OwnerID, b.CategoryID, b.Period.Year, b.Period.Month, b.Amount.Cents)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BudgetsForPeriod(ctx context.Context, ownerID string, p core.Period) ([]core.Budget, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, owner_id, category_id, year, month, amount_cents FROM budgets
		 WHERE owner_id = ? AND year = ? AND month = ?`, ownerID, p.Year, p.Month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Period.Year, &b.Period.Month, &b.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) BudgetFor(ctx context.Context, ownerID, categoryID string, p core.Period) (core.Budget, error) {
	var b core.Budget
	err := r.conn.QueryRowContext(ctx,
		`SELECT id, owner_id, category_id, year, month, amount_cents FROM budgets
		 WHERE owner_id = ? AND category_id = ? AND year = ? AND month = ?`,
		ownerID, categoryID, p.Year, p.Month).
		Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Period.Year, &b.Period.Month, &b.Amount.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) AppendExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = uuid.NewString()
	e.OccurredAt = e.OccurredAt.Truncate(time.Millisecond)
	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, category_id, amount_cents, note, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.CategoryID, e.Amount.Cents, e.Note, e.OccurredAt.UnixMilli())
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, e.ID,
		log.FieldCategoryID, e.CategoryID,
		log.FieldAmountCents, e.Amount.Cents)

	return e, nil
}

func (r *SQLiteRepository) SumByCategory(ctx context.Context, ownerID, categoryID string, from, to time.Time) (core.Money, error) {
	var sum int64
	err := r.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE owner_id = ? AND category_id = ? AND occurred_at >= ? AND occurred_at < ?`,
		ownerID, categoryID, from.UnixMilli(), to.UnixMilli()).Scan(&sum)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: sum}, nil
}

func (r *SQLiteRepository) SumsByCategory(ctx context.Context, ownerID string, from, to time.Time) (map[string]core.Money, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT category_id, COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE owner_id = ? AND occurred_at >= ? AND occurred_at < ?
		 GROUP BY category_id`,
		ownerID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sum expenses by category: %w", err)
	}
	defer rows.Close()

	out := map[string]core.Money{}
	for rows.Next() {
		var id string
		var sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("scan sum: %w", err)
		}
		out[id] = core.Money{Cents: sum}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sums: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListByCategory(ctx context.Context, ownerID, categoryID string, from, to time.Time) ([]core.Expense, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, owner_id, category_id, amount_cents, note, occurred_at FROM expenses
		 WHERE owner_id = ? AND category_id = ? AND occurred_at >= ? AND occurred_at < ?
		 ORDER BY occurred_at DESC, rowid DESC`,
		ownerID, categoryID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		var e core.Expense
		var at int64
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.CategoryID, &e.Amount.Cents, &e.Note, &at); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.OccurredAt = time.UnixMilli(at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}
