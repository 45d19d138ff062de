package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity time point (billing periods are date-bounded)
// =============================================================================

// Date is a calendar day in UTC. All period boundaries in this engine are
// inclusive dates; intra-day precision belongs to the raw time entries.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Time() time.Time    { return d.t }
func (d Date) String() string     { return d.t.Format("2006-01-02") }

// =============================================================================
// PERIOD - Inclusive [Start, End] date range
// =============================================================================

type Period struct {
	Start Date
	End   Date
}

func NewPeriod(start, end Date) Period {
	return Period{Start: start, End: end}
}

// Validate rejects malformed periods (end before start, zero bounds).
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return ErrInvalidPeriod
	}
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains reports whether the date falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Covers reports whether the other period lies entirely within this one.
// Approval cycles are typically weekly; a monthly report covers the weeks
// whose full span falls inside it.
func (p Period) Covers(o Period) bool {
	return p.Contains(o.Start) && p.Contains(o.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
