// Package calendar converts between the local display calendar used by
// operators and the canonical time.Time values the store works with.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosuda/pumpwatch/internal/domain"
)

// Supported calendar kinds.
const (
	KindJalali    = "jalali"
	KindGregorian = "gregorian"
)

// Date is a day in the local calendar.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Converter is a bidirectional, exact converter between local date-time
// strings and canonical timestamps. Invalid input is always an error.
type Converter interface {
	// ToCanonical parses "Y/M/D", "Y/M/D HH:MM" or "Y/M/D HH:MM:SS".
	ToCanonical(local string) (time.Time, error)
	// ToLocal formats t in the local calendar.
	ToLocal(t time.Time, includeTime bool) string
	ParseDate(local string) (Date, error)
	// ParseMonth parses "Y/M".
	ParseMonth(local string) (year, month int, err error)
	// DayBounds returns 00:00:00 and 23:59:59 of d.
	DayBounds(d Date) (start, end time.Time, err error)
	DaysInMonth(year, month int) (int, error)
	FormatDate(d Date) string
}

// system is the arithmetic of one calendar.
type system interface {
	monthLength(year, month int) (int, error)
	toGregorian(year, month, day int) (int, time.Month, int)
	fromGregorian(t time.Time) (year, month, day int)
}

// New returns the converter for kind in loc.
func New(kind string, loc *time.Location) (Converter, error) {
	switch kind {
	case KindJalali:
		return NewJalali(loc), nil
	case KindGregorian:
		return NewGregorian(loc), nil
	default:
		return nil, fmt.Errorf("calendar.New: unknown calendar %q", kind)
	}
}

// NewJalali returns a converter for the Solar Hijri calendar.
func NewJalali(loc *time.Location) Converter {
	return &converter{sys: jalali{}, sep: "/", loc: loc}
}

// NewGregorian returns a converter for the Gregorian calendar using "-" as
// the date separator.
func NewGregorian(loc *time.Location) Converter {
	return &converter{sys: gregorian{}, sep: "-", loc: loc}
}

type converter struct {
	sys system
	sep string
	loc *time.Location
}

func invalid(format string, args ...any) error {
	return domain.Validationf("calendar: "+format, args...)
}

func (c *converter) ToCanonical(local string) (time.Time, error) {
	local = strings.TrimSpace(local)
	datePart, timePart, hasTime := strings.Cut(local, " ")

	d, err := c.ParseDate(datePart)
	if err != nil {
		return time.Time{}, err
	}

	var hour, minute, second int
	if hasTime {
		hour, minute, second, err = parseClock(strings.TrimSpace(timePart))
		if err != nil {
			return time.Time{}, err
		}
	}

	gy, gm, gd := c.sys.toGregorian(d.Year, d.Month, d.Day)
	return time.Date(gy, gm, gd, hour, minute, second, 0, c.loc), nil
}

func (c *converter) ToLocal(t time.Time, includeTime bool) string {
	t = t.In(c.loc)
	y, m, d := c.sys.fromGregorian(t)
	date := c.FormatDate(Date{Year: y, Month: m, Day: d})
	if !includeTime {
		return date
	}
	return fmt.Sprintf("%s %02d:%02d:%02d", date, t.Hour(), t.Minute(), t.Second())
}

func (c *converter) FormatDate(d Date) string {
	return fmt.Sprintf("%04d%s%02d%s%02d", d.Year, c.sep, d.Month, c.sep, d.Day)
}

func (c *converter) ParseDate(local string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(local), c.sep)
	if len(parts) != 3 {
		return Date{}, invalid("malformed date %q", local)
	}
	nums, err := atoiAll(parts)
	if err != nil {
		return Date{}, invalid("malformed date %q", local)
	}
	d := Date{Year: nums[0], Month: nums[1], Day: nums[2]}

	n, err := c.DaysInMonth(d.Year, d.Month)
	if err != nil {
		return Date{}, err
	}
	if d.Day < 1 || d.Day > n {
		return Date{}, invalid("day %d out of range 1..%d in %q", d.Day, n, local)
	}
	return d, nil
}

func (c *converter) ParseMonth(local string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(local), c.sep)
	if len(parts) != 2 {
		return 0, 0, invalid("malformed month %q", local)
	}
	nums, err := atoiAll(parts)
	if err != nil {
		return 0, 0, invalid("malformed month %q", local)
	}
	if _, err := c.DaysInMonth(nums[0], nums[1]); err != nil {
		return 0, 0, err
	}
	return nums[0], nums[1], nil
}

func (c *converter) DayBounds(d Date) (time.Time, time.Time, error) {
	n, err := c.DaysInMonth(d.Year, d.Month)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if d.Day < 1 || d.Day > n {
		return time.Time{}, time.Time{}, invalid("day %d out of range 1..%d", d.Day, n)
	}
	gy, gm, gd := c.sys.toGregorian(d.Year, d.Month, d.Day)
	start := time.Date(gy, gm, gd, 0, 0, 0, 0, c.loc)
	end := time.Date(gy, gm, gd, 23, 59, 59, 0, c.loc)
	return start, end, nil
}

func (c *converter) DaysInMonth(year, month int) (int, error) {
	return c.sys.monthLength(year, month)
}

func parseClock(s string) (int, int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, invalid("malformed time %q", s)
	}
	nums, err := atoiAll(parts)
	if err != nil {
		return 0, 0, 0, invalid("malformed time %q", s)
	}
	if len(nums) == 2 {
		nums = append(nums, 0)
	}
	h, m, sec := nums[0], nums[1], nums[2]
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, 0, 0, invalid("time %q out of range", s)
	}
	return h, m, sec, nil
}

func atoiAll(parts []string) ([]int, error) {
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
