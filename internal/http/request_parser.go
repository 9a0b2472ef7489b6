// Package http serves the JSON API.
//
// This file parses query parameters and request bodies. Months arrive
// 1-based (1 = January) and are converted to core.Period exactly once here.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgeteer/internal/core"
)

const maxBodyBytes = 1 << 20

// ParsePeriod reads year and 1-based month from the query. Missing values
// default to the current month in loc; malformed or out of range values are
// a ValidationError.
func ParsePeriod(query url.Values, now time.Time, loc *time.Location) (core.Period, error) {
	current := core.PeriodOf(now, loc)
	year, month1 := current.Year, current.Month+1

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, &core.ValidationError{Field: "year", Reason: "year must be a number"}
		}
		year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, &core.ValidationError{Field: "month", Reason: "month must be a number"}
		}
		month1 = m
	}
	return periodFromHTTP(year, month1)
}

func periodFromHTTP(year, month1 int) (core.Period, error) {
	if month1 < 1 || month1 > 12 {
		return core.Period{}, &core.ValidationError{Field: "month", Reason: "month must be between 1 and 12"}
	}
	return core.NewPeriod(year, month1-1)
}

// ParseDate accepts YYYY-MM-DD (midnight in loc) or RFC 3339. Empty means
// the zero time, which the services read as now.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, &core.ValidationError{Field: "date", Reason: "date must be YYYY-MM-DD or RFC 3339"}
}

// DecodeJSON reads a single JSON object into v, rejecting unknown fields and
// bodies over 1 MiB.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var (
			maxErr *http.MaxBytesError
			valErr *core.ValidationError
		)
		switch {
		case errors.As(err, &valErr):
			return valErr
		case errors.Is(err, io.EOF):
			return &core.ValidationError{Field: "body", Reason: "request body is empty"}
		case errors.As(err, &maxErr):
			return &core.ValidationError{Field: "body", Reason: "request body too large"}
		default:
			return &core.ValidationError{Field: "body", Reason: fmt.Sprintf("malformed JSON: %v", err)}
		}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Reason: "request body must be a single JSON object"}
	}
	return nil
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type budgetEntryRequest struct {
	CategoryID string     `json:"categoryId"`
	Amount     core.Money `json:"amount"`
}

type budgetsRequest struct {
	Year    int                  `json:"year"`
	Month   int                  `json:"month"`
	Budgets []budgetEntryRequest `json:"budgets"`
}

func (b budgetsRequest) entries() []core.BudgetEntry {
	out := make([]core.BudgetEntry, 0, len(b.Budgets))
	for _, e := range b.Budgets {
		out = append(out, core.BudgetEntry{CategoryID: sanitizeInput(e.CategoryID), Amount: e.Amount})
	}
	return out
}

type expenseRequest struct {
	CategoryID string      `json:"categoryId"`
	Amount     *core.Money `json:"amount"`
	Note       string      `json:"note"`
	Date       string      `json:"date"`
}

// amount reports a missing or null amount as a field error.
func (e expenseRequest) amount() (core.Money, error) {
	if e.Amount == nil {
		return core.Money{}, &core.ValidationError{Field: "amount", Reason: "amount is required"}
	}
	return *e.Amount, nil
}
