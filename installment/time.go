package installment

import (
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar date without a time component
// =============================================================================

// DateLayout is the ISO calendar date format used on every boundary.
const DateLayout = "2006-01-02"

// Date is a calendar day. The wrapped time is always midnight UTC.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in loc (UTC when loc is nil).
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, invalidArg("date", "unparsable date %q", s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) IsZero() bool                  { return d.Time.IsZero() }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// AddMonthsClamped moves n calendar months forward. When the day-of-month
// does not exist in the target month it clamps to that month's last day
// (Jan 31 + 1 month = Feb 28/29), unlike time.AddDate which normalizes into
// the following month.
func (d Date) AddMonthsClamped(n int) Date {
	total := int(d.Month()) - 1 + n
	year := d.Year() + floorDiv(total, 12)
	month := time.Month(floorMod(total, 12) + 1)
	day := d.Day()
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// AddYearsClamped moves n years forward; Feb 29 becomes Feb 28 in non-leap years.
func (d Date) AddYearsClamped(n int) Date {
	return d.AddMonthsClamped(12 * n)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns the whole days from -> to (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes YYYY-MM-DD; the empty string yields the zero date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
