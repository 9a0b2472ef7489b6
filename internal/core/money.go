// Package core holds the budgeting domain: categories, budgets, expenses,
// calendar periods and the pure period summary rollup.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.New(1<<63-1, 0)

// ParseDecimalToCents converts a decimal string to cents.
//
// Both dot (12.34) and comma (12,34) separators are accepted; a third
// fractional digit is rounded half-up. Negative values are rejected, zero is
// a valid amount.
//
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, invalid("amount", ErrInvalidAmount.Error())
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, invalid("amount", ErrInvalidAmount.Error())
	}
	return decimalToCents(d)
}

func decimalToCents(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, invalid("amount", ErrInvalidAmount.Error())
	}
	cents := d.Round(2).Shift(2)
	if cents.GreaterThan(maxCents) {
		return 0, invalid("amount", "amount too large")
	}
	return cents.IntPart(), nil
}

// MoneyFromDecimal builds Money from a currency-unit decimal.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	c, err := decimalToCents(d)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with two decimals, e.g. "12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON renders money as a bare JSON number in currency units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string. JSON null leaves
// the value untouched; callers that require an amount decode into *Money.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return invalid("amount", ErrInvalidAmount.Error())
	}
	c, err := decimalToCents(d)
	if err != nil {
		return err
	}
	m.Cents = c
	return nil
}
