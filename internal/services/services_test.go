package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgeteer/internal/amqp"
	"budgeteer/internal/cache"
	"budgeteer/internal/core"
	"budgeteer/internal/storage/memory"
)

const owner = "owner-1"

var may = core.Period{Year: 2024, Month: 4}

type fakePublisher struct {
	mu       sync.Mutex
	expenses []*amqp.ExpenseRecordedMessage
	budgets  []*amqp.BudgetsSavedMessage
	err      error
}

func (f *fakePublisher) PublishExpenseRecorded(_ context.Context, msg *amqp.ExpenseRecordedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expenses = append(f.expenses, msg)
	return f.err
}

func (f *fakePublisher) PublishBudgetsSaved(_ context.Context, msg *amqp.BudgetsSavedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.budgets = append(f.budgets, msg)
	return f.err
}

type fixture struct {
	store     *memory.Store
	summaries *SummaryService
	expenses  *ExpenseService
	budgets   *BudgetService
	cats      *CategoryService
	pub       *fakePublisher
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	store := memory.New()
	opts := SummaryOptions{Location: time.UTC}
	if withCache {
		opts.Cache = cache.NewLocal[core.PeriodSummary](cache.NewLRUCache[core.PeriodSummary](16, time.Minute))
	}
	summaries := NewSummaryService(store, opts)
	pub := &fakePublisher{}
	return &fixture{
		store:     store,
		summaries: summaries,
		expenses:  NewExpenseService(store, summaries, pub, nil),
		budgets:   NewBudgetService(store, summaries, pub, 4, nil),
		cats:      NewCategoryService(store, summaries, nil),
		pub:       pub,
	}
}

func (f *fixture) category(t *testing.T, name string) core.Category {
	t.Helper()
	c, err := f.cats.Create(context.Background(), owner, name, "")
	require.NoError(t, err)
	return c
}

func (f *fixture) spend(t *testing.T, catID string, cents int64, at time.Time) core.ExpenseOutcome {
	t.Helper()
	out, err := f.expenses.AddExpense(context.Background(), owner, NewExpense{
		CategoryID: catID,
		Amount:     core.Money{Cents: cents},
		OccurredAt: at,
	})
	require.NoError(t, err)
	return out
}

func inMay(day int) time.Time {
	return time.Date(2024, time.May, day, 12, 0, 0, 0, time.UTC)
}

func TestComputePeriodSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	food := f.category(t, "Food")
	rent := f.category(t, "Rent")

	_, err := f.budgets.SetBudgets(ctx, owner, may, []core.BudgetEntry{
		{CategoryID: food.ID, Amount: core.Money{Cents: 50000}},
		{CategoryID: rent.ID, Amount: core.Money{Cents: 20000}},
	})
	require.NoError(t, err)
	f.spend(t, food.ID, 20000, inMay(3))
	f.spend(t, food.ID, 15000, inMay(20))
	// Other months never leak in.
	f.spend(t, food.ID, 99900, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	f.spend(t, food.ID, 99900, time.Date(2024, time.April, 30, 23, 59, 0, 0, time.UTC))

	s, err := f.summaries.ComputePeriodSummary(ctx, owner, may)
	require.NoError(t, err)
	require.Len(t, s.Rows, 2)

	assert.Equal(t, food.ID, s.Rows[0].CategoryID)
	assert.Equal(t, int64(50000), s.Rows[0].Budget.Cents)
	assert.Equal(t, int64(35000), s.Rows[0].Spent.Cents)
	assert.Equal(t, int64(15000), s.Rows[0].Remaining.Cents)

	assert.Equal(t, rent.ID, s.Rows[1].CategoryID)
	assert.Equal(t, int64(20000), s.Rows[1].Remaining.Cents)
	assert.Zero(t, s.Rows[1].Spent.Cents)

	assert.Equal(t, int64(70000), s.Totals.Budget.Cents)
	assert.Equal(t, int64(35000), s.Totals.Spent.Cents)
	assert.Equal(t, int64(35000), s.Totals.Remaining.Cents)
}

func TestComputePeriodSummaryInvalidPeriod(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.summaries.ComputePeriodSummary(context.Background(), owner, core.Period{Year: 2024, Month: 12})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSummaryReflectsWritesThroughCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	food := f.category(t, "Food")

	before, err := f.summaries.ComputePeriodSummary(ctx, owner, may)
	require.NoError(t, err)
	assert.Zero(t, before.Totals.Spent.Cents)

	var last int64
	for i, cents := range []int64{100, 250, 1} {
		f.spend(t, food.ID, cents, inMay(i+1))
		s, err := f.summaries.ComputePeriodSummary(ctx, owner, may)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s.Rows[0].Spent.Cents, last)
		last = s.Rows[0].Spent.Cents
	}
	assert.Equal(t, int64(351), last)

	f.category(t, "Bills")
	s, err := f.summaries.ComputePeriodSummary(ctx, owner, may)
	require.NoError(t, err)
	assert.Len(t, s.Rows, 2)
}

func TestAddExpenseOverBudget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	food := f.category(t, "Food")
	_, err := f.budgets.SetBudgets(ctx, owner, may, []core.BudgetEntry{{CategoryID: food.ID, Amount: core.Money{Cents: 10000}}})
	require.NoError(t, err)

	out := f.spend(t, food.ID, 15000, inMay(10))
	assert.True(t, out.Over)
	assert.Equal(t, int64(15000), out.Spent.Cents)
	assert.Equal(t, int64(10000), out.Limit.Cents)
	assert.NotEmpty(t, out.Expense.ID)

	require.Len(t, f.pub.expenses, 1)
	msg := f.pub.expenses[0]
	assert.True(t, msg.Over)
	assert.Equal(t, owner, msg.OwnerID)
	assert.Equal(t, 4, msg.Month)
}

func TestAddExpenseWithoutBudgetIsNeverOver(t *testing.T) {
	f := newFixture(t, false)
	food := f.category(t, "Food")
	out := f.spend(t, food.ID, 123456, inMay(2))
	assert.False(t, out.Over)
	assert.Zero(t, out.Limit.Cents)
}

func TestAddExpenseExactlyAtLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	food := f.category(t, "Food")
	_, err := f.budgets.SetBudgets(ctx, owner, may, []core.BudgetEntry{{CategoryID: food.ID, Amount: core.Money{Cents: 500}}})
	require.NoError(t, err)
	out := f.spend(t, food.ID, 500, inMay(2))
	assert.False(t, out.Over)
}

func TestAddExpenseValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	food := f.category(t, "Food")

	tests := []struct {
		name  string
		in    NewExpense
		field string
	}{
		{"negative amount", NewExpense{CategoryID: food.ID, Amount: core.Money{Cents: -1}}, "amount"},
		{"missing category", NewExpense{Amount: core.Money{Cents: 1}}, "categoryId"},
		{"unknown category", NewExpense{CategoryID: "nope", Amount: core.Money{Cents: 1}}, "categoryId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expenses.AddExpense(ctx, owner, tt.in)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, f.pub.expenses)
}

func TestAddExpenseDefaultsToNow(t *testing.T) {
	f := newFixture(t, false)
	food := f.category(t, "Food")
	f.expenses.now = func() time.Time { return inMay(15) }

	out, err := f.expenses.AddExpense(context.Background(), owner, NewExpense{CategoryID: food.ID, Amount: core.Money{Cents: 700}})
	require.NoError(t, err)
	assert.Equal(t, inMay(15), out.Expense.OccurredAt)
	assert.Equal(t, int64(700), out.Spent.Cents)
}

func TestAddExpensePublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, false)
	f.pub.err = errors.New("broker down")
	food := f.category(t, "Food")
	out := f.spend(t, food.ID, 100, inMay(1))
	assert.NotEmpty(t, out.Expense.ID)
}

func TestSetBudgetsIdempotentAndLastWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	food := f.category(t, "Food")

	entries := []core.BudgetEntry{
		{CategoryID: food.ID, Amount: core.Money{Cents: 100}},
		{CategoryID: food.ID, Amount: core.Money{Cents: 300}},
	}
	for range 2 {
		res, err := f.budgets.SetBudgets(ctx, owner, may, entries)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Saved)
	}

	rows, err := f.budgets.GetBudgets(ctx, owner, may)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(300), rows[0].Amount.Cents)

	limit, err := f.budgets.BudgetFor(ctx, owner, food.ID, may)
	require.NoError(t, err)
	assert.Equal(t, int64(300), limit.Cents)
}

func TestSetBudgetsSkipsForeignCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	food := f.category(t, "Food")
	other, err := f.cats.Create(ctx, "owner-2", "Theirs", "")
	require.NoError(t, err)

	res, err := f.budgets.SetBudgets(ctx, owner, may, []core.BudgetEntry{
		{CategoryID: food.ID, Amount: core.Money{Cents: 100}},
		{CategoryID: other.ID, Amount: core.Money{Cents: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Saved: 1, Skipped: 1}, res)

	theirs, err := f.budgets.GetBudgets(ctx, "owner-2", may)
	require.NoError(t, err)
	assert.Empty(t, theirs)
	require.Len(t, f.pub.budgets, 1)
	assert.Equal(t, 1, f.pub.budgets[0].Saved)
}

func TestSetBudgetsRejectsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	food := f.category(t, "Food")

	_, err := f.budgets.SetBudgets(ctx, owner, may, []core.BudgetEntry{
		{CategoryID: food.ID, Amount: core.Money{Cents: 100}},
		{CategoryID: food.ID, Amount: core.Money{Cents: -5}},
	})
	require.ErrorIs(t, err, core.ErrValidation)

	rows, err := f.budgets.GetBudgets(ctx, owner, may)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCategoryLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	food := f.category(t, "  Food ")
	assert.Equal(t, "Food", food.Name)

	_, err := f.cats.Create(ctx, owner, "   ", "")
	assert.ErrorIs(t, err, core.ErrValidation)

	renamed, err := f.cats.Update(ctx, owner, food.ID, "Groceries", "#00ff00")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", renamed.Name)

	_, err = f.cats.Update(ctx, owner, "missing", "X", "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	f.spend(t, food.ID, 100, inMay(1))
	s, err := f.summaries.ComputePeriodSummary(ctx, owner, may)
	require.NoError(t, err)
	require.Len(t, s.Rows, 1)

	require.NoError(t, f.cats.Delete(ctx, owner, food.ID))
	require.NoError(t, f.cats.Delete(ctx, owner, food.ID))

	s, err = f.summaries.ComputePeriodSummary(ctx, owner, may)
	require.NoError(t, err)
	assert.Empty(t, s.Rows)
	assert.Zero(t, s.Totals.Spent.Cents)
}

func TestCategoryDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	food := f.category(t, "Food")
	f.spend(t, food.ID, 100, inMay(1))
	f.spend(t, food.ID, 200, inMay(9))

	d, err := f.summaries.CategoryDetail(ctx, owner, food.ID, may)
	require.NoError(t, err)
	require.NotNil(t, d.Row)
	assert.Equal(t, int64(300), d.Row.Spent.Cents)
	require.Len(t, d.Expenses, 2)
	assert.Equal(t, int64(200), d.Expenses[0].Amount.Cents)

	d, err = f.summaries.CategoryDetail(ctx, owner, "unknown", may)
	require.NoError(t, err)
	assert.Nil(t, d.Row)
	assert.Empty(t, d.Expenses)
}

type failingStore struct {
	*memory.Store
}

func (failingStore) BudgetsForPeriod(context.Context, string, core.Period) ([]core.Budget, error) {
	return nil, errors.New("connection reset")
}

func TestComputePeriodSummaryAbortsOnReadFailure(t *testing.T) {
	store := failingStore{Store: memory.New()}
	_, err := store.CreateCategory(context.Background(), core.Category{OwnerID: owner, Name: "Food"})
	require.NoError(t, err)

	svc := NewSummaryService(store, SummaryOptions{Location: time.UTC})
	_, err = svc.ComputePeriodSummary(context.Background(), owner, may)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list budgets")
}

func TestSummariesAreOwnerScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	food := f.category(t, "Food")
	f.spend(t, food.ID, 100, inMay(1))

	s, err := f.summaries.ComputePeriodSummary(ctx, "owner-2", may)
	require.NoError(t, err)
	assert.Empty(t, s.Rows)
}

// gatedStore parks the first SumsByCategory call after it has read the
// ledger, until release is closed.
type gatedStore struct {
	*memory.Store
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (g *gatedStore) SumsByCategory(ctx context.Context, ownerID string, from, to time.Time) (map[string]core.Money, error) {
	sums, err := g.Store.SumsByCategory(ctx, ownerID, from, to)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.reached)
		<-g.release
	}
	return sums, err
}

func TestSummaryAfterWriteDoesNotJoinEarlierComputation(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{Store: memory.New(), reached: make(chan struct{}), release: make(chan struct{})}
	summaries := NewSummaryService(store, SummaryOptions{
		Location: time.UTC,
		Cache:    cache.NewLocal[core.PeriodSummary](cache.NewLRUCache[core.PeriodSummary](16, time.Minute)),
	})
	expenses := NewExpenseService(store, summaries, nil, nil)
	food, err := NewCategoryService(store, summaries, nil).Create(ctx, owner, "Food", "")
	require.NoError(t, err)

	early := make(chan core.PeriodSummary, 1)
	go func() {
		s, err := summaries.ComputePeriodSummary(ctx, owner, may)
		assert.NoError(t, err)
		early <- s
	}()
	<-store.reached

	_, err = expenses.AddExpense(ctx, owner, NewExpense{CategoryID: food.ID, Amount: core.Money{Cents: 500}, OccurredAt: inMay(3)})
	require.NoError(t, err)

	late := make(chan core.PeriodSummary, 1)
	go func() {
		s, err := summaries.ComputePeriodSummary(ctx, owner, may)
		assert.NoError(t, err)
		late <- s
	}()

	select {
	case s := <-late:
		assert.Equal(t, int64(500), s.Totals.Spent.Cents)
	case <-time.After(5 * time.Second):
		close(store.release)
		t.Fatal("summary requested after the write waited on the earlier computation")
	}

	close(store.release)
	assert.Equal(t, int64(0), (<-early).Totals.Spent.Cents)

	// The stale result must not have been cached.
	s, err := summaries.ComputePeriodSummary(ctx, owner, may)
	require.NoError(t, err)
	assert.Equal(t, int64(500), s.Totals.Spent.Cents)
}

type racingCache struct {
	cache.Store[core.PeriodSummary]
	onSet func()
}

func (r *racingCache) Set(ctx context.Context, key string, data core.PeriodSummary) error {
	if r.onSet != nil {
		hook := r.onSet
		r.onSet = nil
		hook()
	}
	return r.Store.Set(ctx, key, data)
}

func TestInvalidateBetweenCheckAndSetLeavesNoStaleEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rc := &racingCache{Store: cache.NewLocal[core.PeriodSummary](cache.NewLRUCache[core.PeriodSummary](16, time.Minute))}
	summaries := NewSummaryService(store, SummaryOptions{Location: time.UTC, Cache: rc})
	food, err := store.CreateCategory(ctx, core.Category{OwnerID: owner, Name: "Food"})
	require.NoError(t, err)

	// A write lands after the epoch check, its delete runs before the Set.
	rc.onSet = func() {
		_, err := store.AppendExpense(ctx, core.Expense{OwnerID: owner, CategoryID: food.ID, Amount: core.Money{Cents: 700}, OccurredAt: inMay(2)})
		require.NoError(t, err)
		summaries.Invalidate(ctx, owner)
	}

	first, err := summaries.ComputePeriodSummary(ctx, owner, may)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Totals.Spent.Cents)

	again, err := summaries.ComputePeriodSummary(ctx, owner, may)
	require.NoError(t, err)
	assert.Equal(t, int64(700), again.Totals.Spent.Cents)
}
