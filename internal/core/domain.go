package core

import (
	"errors"
	"strings"
	"time"
)

const (
	maxNameLength = 100
	maxNoteLength = 500
)

type (
	Money struct {
		Cents int64
	}

	Category struct {
		ID      string
		OwnerID string
		Name    string
		Color   string
	}

	Budget struct {
		ID         string
		OwnerID    string
		CategoryID string
		Period     Period
		Amount     Money
	}

	// BudgetEntry is one line of a bulk budget save.
	BudgetEntry struct {
		CategoryID string
		Amount     Money
	}

	Expense struct {
		ID         string
		OwnerID    string
		CategoryID string
		Amount     Money
		Note       string
		OccurredAt time.Time
	}

	// ExpenseOutcome is returned by the write path so callers can react to
	// the new spend without asking for a full period summary.
	ExpenseOutcome struct {
		Expense Expense
		Spent   Money
		Limit   Money
		Over    bool
	}
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidYear   = errors.New("invalid year")
)

// ValidationError reports which input field was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Is lets callers match any validation failure with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return invalid("amount", ErrInvalidAmount.Error())
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return invalid("name", "name is required")
	}
	if len(name) > maxNameLength {
		return invalid("name", "name too long (max 100 characters)")
	}
	return nil
}

func (e BudgetEntry) Validate() error {
	if strings.TrimSpace(e.CategoryID) == "" {
		return invalid("categoryId", "category is required")
	}
	return e.Amount.Validate()
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.CategoryID) == "" {
		return invalid("categoryId", "category is required")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Note) > maxNoteLength {
		return invalid("note", "note too long (max 500 characters)")
	}
	if e.OccurredAt.IsZero() {
		return invalid("date", "date cannot be zero")
	}
	return nil
}

// CheckOverBudget applies the write-path policy: a zero limit means no budget
// was set and is never exceeded.
func CheckOverBudget(limit, spent Money) bool {
	return limit.Cents > 0 && spent.Cents > limit.Cents
}
