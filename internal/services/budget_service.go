package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/ports"
)

const defaultSaveConcurrency = 8

type BudgetService struct {
	store       ports.Store
	summaries   *SummaryService
	publisher   EventPublisher
	logger      *log.Logger
	concurrency int
}

// NewBudgetService wires bulk budget saves. publisher may be nil; a
// non-positive concurrency uses the default.
func NewBudgetService(store ports.Store, summaries *SummaryService, publisher EventPublisher, concurrency int, logger *log.Logger) *BudgetService {
	if concurrency < 1 {
		concurrency = defaultSaveConcurrency
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &BudgetService{
		store:       store,
		summaries:   summaries,
		publisher:   publisher,
		logger:      logger.WithComponent(log.ComponentBudget),
		concurrency: concurrency,
	}
}

// SaveResult counts the entries written and the ones dropped because their
// category does not belong to the owner.
type SaveResult struct {
	Saved   int
	Skipped int
}

// SetBudgets upserts one budget per entry for p. Entries are validated
// before any write; duplicates keep the last amount. Upserts run in
// parallel and each is atomic on its own, so a failure leaves the other
// entries written.
func (s *BudgetService) SetBudgets(ctx context.Context, ownerID string, p core.Period, entries []core.BudgetEntry) (SaveResult, error) {
	if err := p.Validate(); err != nil {
		return SaveResult{}, err
	}

	order := make([]string, 0, len(entries))
	amounts := make(map[string]core.Money, len(entries))
	for _, e := range entries {
		e.CategoryID = strings.TrimSpace(e.CategoryID)
		if err := e.Validate(); err != nil {
			return SaveResult{}, err
		}
		if _, seen := amounts[e.CategoryID]; !seen {
			order = append(order, e.CategoryID)
		}
		amounts[e.CategoryID] = e.Amount
	}

	cats, err := s.store.ListCategories(ctx, ownerID)
	if err != nil {
		return SaveResult{}, fmt.Errorf("list categories: %w", err)
	}
	owned := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		owned[c.ID] = struct{}{}
	}

	var res SaveResult
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range order {
		if _, ok := owned[id]; !ok {
			res.Skipped++
			continue
		}
		b := core.Budget{OwnerID: ownerID, CategoryID: id, Period: p, Amount: amounts[id]}
		res.Saved++
		g.Go(func() error {
			if err := s.store.UpsertBudget(gctx, b); err != nil {
				return fmt.Errorf("upsert budget %s: %w", b.CategoryID, err)
			}
			return nil
		})
	}
	err = g.Wait()
	// Some upserts may have landed even on failure.
	s.summaries.Invalidate(ctx, ownerID)
	if err != nil {
		return SaveResult{}, err
	}

	s.logger.InfoContext(ctx, "Budgets saved",
		log.NewFields().
			WithOwner(ownerID).
			WithPeriod(p.Year, p.Month).
			WithOperation(log.OpUpsert).
			ToSlice()...,
	)
	if res.Skipped > 0 {
		s.logger.DebugContext(ctx, "Budget entries skipped for unknown categories",
			log.FieldOwnerID, ownerID, log.FieldSkipped, res.Skipped)
	}

	if s.publisher != nil && res.Saved > 0 {
		msg := amqp.NewBudgetsSavedMessage(ownerID, p.Year, p.Month, res.Saved)
		if err := s.publisher.PublishBudgetsSaved(ctx, msg); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish budgets event",
				log.FieldOwnerID, ownerID, log.FieldError, err)
		}
	}
	return res, nil
}

// GetBudgets returns the budget rows stored for p.
func (s *BudgetService) GetBudgets(ctx context.Context, ownerID string, p core.Period) ([]core.Budget, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out, err := s.store.BudgetsForPeriod(ctx, ownerID, p)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return out, nil
}

// BudgetFor returns the single limit for a category, zero when unset.
func (s *BudgetService) BudgetFor(ctx context.Context, ownerID, categoryID string, p core.Period) (core.Money, error) {
	b, err := s.store.BudgetFor(ctx, ownerID, categoryID, p)
	if errors.Is(err, core.ErrNotFound) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get budget: %w", err)
	}
	return b.Amount, nil
}
