package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/ports"
)

// ExpenseService records expenses and reports the budget position they
// leave their category in.
type ExpenseService struct {
	store     ports.Store
	summaries *SummaryService
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

// NewExpenseService wires the write path. publisher may be nil.
func NewExpenseService(store ports.Store, summaries *SummaryService, publisher EventPublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		store:     store,
		summaries: summaries,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentExpense),
		now:       time.Now,
	}
}

// NewExpense is the input of AddExpense. A zero OccurredAt means now.
type NewExpense struct {
	CategoryID string
	Amount     core.Money
	Note       string
	OccurredAt time.Time
}

// AddExpense persists the expense, then recomputes the spend of its
// category for the month it falls in. Over is set only when a non-zero
// budget exists and the spend exceeds it.
func (s *ExpenseService) AddExpense(ctx context.Context, ownerID string, in NewExpense) (core.ExpenseOutcome, error) {
	e := core.Expense{
		OwnerID:    ownerID,
		CategoryID: strings.TrimSpace(in.CategoryID),
		Amount:     in.Amount,
		Note:       strings.TrimSpace(in.Note),
		OccurredAt: in.OccurredAt,
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	if err := e.Validate(); err != nil {
		return core.ExpenseOutcome{}, err
	}

	if _, err := s.store.GetCategory(ctx, ownerID, e.CategoryID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ExpenseOutcome{}, &core.ValidationError{Field: "categoryId", Reason: "unknown category"}
		}
		return core.ExpenseOutcome{}, fmt.Errorf("get category: %w", err)
	}

	saved, err := s.store.AppendExpense(ctx, e)
	if err != nil {
		return core.ExpenseOutcome{}, fmt.Errorf("save expense: %w", err)
	}
	s.summaries.Invalidate(ctx, ownerID)

	loc := s.summaries.Location()
	p := core.PeriodOf(saved.OccurredAt, loc)
	bounds := p.Bounds(loc)

	var limit core.Money
	switch b, err := s.store.BudgetFor(ctx, ownerID, saved.CategoryID, p); {
	case err == nil:
		limit = b.Amount
	case errors.Is(err, core.ErrNotFound):
	default:
		return core.ExpenseOutcome{}, fmt.Errorf("get budget: %w", err)
	}

	spent, err := s.store.SumByCategory(ctx, ownerID, saved.CategoryID, bounds.Start, bounds.Next)
	if err != nil {
		return core.ExpenseOutcome{}, fmt.Errorf("sum expenses: %w", err)
	}

	out := core.ExpenseOutcome{
		Expense: saved,
		Spent:   spent,
		Limit:   limit,
		Over:    core.CheckOverBudget(limit, spent),
	}

	fields := log.NewFields().
		WithOwner(ownerID).
		WithPeriod(p.Year, p.Month).
		WithExpense(saved.ID, saved.CategoryID, saved.Amount.Cents, spent.Cents, limit.Cents, out.Over).
		WithOperation(log.OpAppend)
	if out.Over {
		s.logger.WarnContext(ctx, "Expense pushed category over budget", fields.ToSlice()...)
	} else {
		s.logger.InfoContext(ctx, "Expense recorded", fields.ToSlice()...)
	}

	s.publish(ctx, p, out)
	return out, nil
}

// publish never fails the request: the expense is already stored.
func (s *ExpenseService) publish(ctx context.Context, p core.Period, out core.ExpenseOutcome) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewExpenseRecordedMessage(
		out.Expense.ID, out.Expense.OwnerID, out.Expense.CategoryID,
		p.Year, p.Month,
		out.Expense.Amount.Cents, out.Spent.Cents, out.Limit.Cents, out.Over)
	if err := s.publisher.PublishExpenseRecorded(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldExpenseID, out.Expense.ID,
			log.FieldError, err)
	}
}
