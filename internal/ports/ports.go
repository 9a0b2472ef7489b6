// Package ports declares the store and sink interfaces the services depend on.
package ports

import (
	"context"
	"time"

	"budgeteer/internal/core"
)

// Ports for outbound adapters. Every call is scoped by owner.
type (
	CategoryStore interface {
		// ListCategories returns the owner's categories ordered by name,
		// ties broken by creation order.
		ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
		// GetCategory returns core.ErrNotFound when the category is missing
		// or belongs to someone else.
		GetCategory(ctx context.Context, ownerID, id string) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		// DeleteCategory reports whether a row was removed.
		DeleteCategory(ctx context.Context, ownerID, id string) (bool, error)
	}

	BudgetStore interface {
		// UpsertBudget atomically inserts or overwrites the amount keyed by
		// (owner, category, period).
		UpsertBudget(ctx context.Context, b core.Budget) error
		BudgetsForPeriod(ctx context.Context, ownerID string, p core.Period) ([]core.Budget, error)
		// BudgetFor returns core.ErrNotFound when no row exists.
		BudgetFor(ctx context.Context, ownerID, categoryID string, p core.Period) (core.Budget, error)
	}

	// ExpenseLedger ranges are half-open: from <= occurredAt < to.
	ExpenseLedger interface {
		AppendExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		SumByCategory(ctx context.Context, ownerID, categoryID string, from, to time.Time) (core.Money, error)
		SumsByCategory(ctx context.Context, ownerID string, from, to time.Time) (map[string]core.Money, error)
		// ListByCategory returns newest first.
		ListByCategory(ctx context.Context, ownerID, categoryID string, from, to time.Time) ([]core.Expense, error)
	}

	// Store bundles the three persistence ports of one backend.
	Store interface {
		CategoryStore
		BudgetStore
		ExpenseLedger
	}

	// SummaryExporter pushes a computed period summary to an external sink.
	SummaryExporter interface {
		Name() string
		Export(ctx context.Context, ownerID string, s core.PeriodSummary) error
	}
)
