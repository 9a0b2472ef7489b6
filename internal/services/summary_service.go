package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"budgeteer/internal/cache"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/ports"
)

const computeTimeout = 10 * time.Second

// SummaryService computes period summaries, the one view shared by the
// dashboard, reports, category detail and exports.
type SummaryService struct {
	categories ports.CategoryStore
	budgets    ports.BudgetStore
	ledger     ports.ExpenseLedger
	loc        *time.Location
	cache      cache.Store[core.PeriodSummary]
	logger     *log.Logger

	group singleflight.Group

	mu     sync.Mutex
	epochs map[string]uint64
}

type SummaryOptions struct {
	Location *time.Location
	// Cache is optional.
	Cache  cache.Store[core.PeriodSummary]
	Logger *log.Logger
}

func NewSummaryService(store ports.Store, opts SummaryOptions) *SummaryService {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &SummaryService{
		categories: store,
		budgets:    store,
		ledger:     store,
		loc:        loc,
		cache:      opts.Cache,
		logger:     logger.WithComponent(log.ComponentSummary),
		epochs:     map[string]uint64{},
	}
}

// Location is the zone period boundaries are computed in.
func (s *SummaryService) Location() *time.Location {
	return s.loc
}

// ComputePeriodSummary returns one row per category of the owner with its
// budget, spend and remainder for p, plus totals. Any failing read aborts the
// whole computation.
func (s *SummaryService) ComputePeriodSummary(ctx context.Context, ownerID string, p core.Period) (core.PeriodSummary, error) {
	if err := p.Validate(); err != nil {
		return core.PeriodSummary{}, err
	}

	key := summaryKey(ownerID, p)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "Summary cache read failed", log.FieldError, err)
		} else if ok {
			return cached, nil
		}
	}

	// Callers that arrive after a write must not join a computation that
	// started before it, so the flight key carries the owner epoch.
	epoch := s.epoch(ownerID)
	flight := key + "@" + strconv.FormatUint(epoch, 10)
	v, err, _ := s.group.Do(flight, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()

		summary, err := s.compute(cctx, ownerID, p)
		if err != nil {
			return nil, err
		}
		s.store(cctx, ownerID, key, epoch, summary)
		return summary, nil
	})
	if err != nil {
		return core.PeriodSummary{}, err
	}
	return v.(core.PeriodSummary), nil
}

// store caches summary unless a write bumped the owner epoch since the
// computation started. The epoch is checked again after Set: an Invalidate
// that slipped in between may have run its delete before the Set landed.
func (s *SummaryService) store(ctx context.Context, ownerID, key string, epoch uint64, summary core.PeriodSummary) {
	if s.cache == nil || s.epoch(ownerID) != epoch {
		return
	}
	if err := s.cache.Set(ctx, key, summary); err != nil {
		s.logger.WarnContext(ctx, "Summary cache write failed", log.FieldError, err)
		return
	}
	if s.epoch(ownerID) != epoch {
		if err := s.cache.DeletePrefix(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Summary cache rollback failed", log.FieldError, err)
		}
	}
}

func (s *SummaryService) compute(ctx context.Context, ownerID string, p core.Period) (core.PeriodSummary, error) {
	bounds := p.Bounds(s.loc)

	var (
		categories []core.Category
		budgets    []core.Budget
		spent      map[string]core.Money
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if categories, err = s.categories.ListCategories(gctx, ownerID); err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if budgets, err = s.budgets.BudgetsForPeriod(gctx, ownerID, p); err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if spent, err = s.ledger.SumsByCategory(gctx, ownerID, bounds.Start, bounds.Next); err != nil {
			return fmt.Errorf("sum expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Period summary failed",
			log.NewFields().WithOwner(ownerID).WithPeriod(p.Year, p.Month).WithError(err).ToSlice()...)
		return core.PeriodSummary{}, err
	}

	return core.BuildPeriodSummary(p, categories, budgets, spent), nil
}

// CategoryExpenses lists the category's expenses in p, newest first. A
// category that is missing or owned by someone else yields an empty list.
func (s *SummaryService) CategoryExpenses(ctx context.Context, ownerID, categoryID string, p core.Period) ([]core.Expense, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.categories.GetCategory(ctx, ownerID, categoryID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return []core.Expense{}, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	b := p.Bounds(s.loc)
	out, err := s.ledger.ListByCategory(ctx, ownerID, categoryID, b.Start, b.Next)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// CategoryDetail is the category view: its summary row and its expenses.
type CategoryDetail struct {
	Row      *core.AggregateRow
	Expenses []core.Expense
}

// CategoryDetail reads the row from the canonical summary so the detail view
// never disagrees with the dashboard. Row is nil for unknown categories.
func (s *SummaryService) CategoryDetail(ctx context.Context, ownerID, categoryID string, p core.Period) (CategoryDetail, error) {
	summary, err := s.ComputePeriodSummary(ctx, ownerID, p)
	if err != nil {
		return CategoryDetail{}, err
	}
	var detail CategoryDetail
	for i := range summary.Rows {
		if summary.Rows[i].CategoryID == categoryID {
			row := summary.Rows[i]
			detail.Row = &row
			break
		}
	}
	if detail.Row == nil {
		detail.Expenses = []core.Expense{}
		return detail, nil
	}
	if detail.Expenses, err = s.CategoryExpenses(ctx, ownerID, categoryID, p); err != nil {
		return CategoryDetail{}, err
	}
	return detail, nil
}

// Invalidate drops every cached summary of the owner.
func (s *SummaryService) Invalidate(ctx context.Context, ownerID string) {
	s.mu.Lock()
	s.epochs[ownerID]++
	s.mu.Unlock()

	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, ownerPrefix(ownerID)); err != nil {
		s.logger.WarnContext(ctx, "Summary cache invalidation failed",
			log.FieldOwnerID, ownerID, log.FieldError, err)
	}
}

func (s *SummaryService) epoch(ownerID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[ownerID]
}

func ownerPrefix(ownerID string) string {
	return "summary:" + ownerID + ":"
}

func summaryKey(ownerID string, p core.Period) string {
	return ownerPrefix(ownerID) + p.String()
}
