package core

import (
	"fmt"
	"time"
)

const (
	minYear = 1970
	maxYear = 9999
)

// Period is a calendar month. Month is 0-based (0 = January).
type Period struct {
	Year  int
	Month int
}

// Bounds is the half-open instant range [Start, Next) covered by a period.
type Bounds struct {
	Start time.Time
	Next  time.Time
}

// NewPeriod validates year and 0-based month.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the period containing t as seen in loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return Period{Year: lt.Year(), Month: int(lt.Month()) - 1}
}

func (p Period) Validate() error {
	if p.Month < 0 || p.Month > 11 {
		return invalid("month", ErrInvalidMonth.Error())
	}
	if p.Year < minYear || p.Year > maxYear {
		return invalid("year", ErrInvalidYear.Error())
	}
	return nil
}

// Bounds resolves the instants of the period in loc.
func (p Period) Bounds(loc *time.Location) Bounds {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(p.Year, time.Month(p.Month+1), 1, 0, 0, 0, 0, loc)
	return Bounds{Start: start, Next: start.AddDate(0, 1, 0)}
}

func (p Period) Next() Period {
	if p.Month == 11 {
		return Period{Year: p.Year + 1, Month: 0}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// String renders YYYY-MM with a 1-based month.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month+1)
}

// End is the last representable millisecond of the period.
func (b Bounds) End() time.Time {
	return b.Next.Add(-time.Millisecond)
}

func (b Bounds) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.Next)
}
