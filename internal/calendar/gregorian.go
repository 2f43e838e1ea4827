package calendar

import "time"

type gregorian struct{}

func (gregorian) monthLength(year, month int) (int, error) {
	if year < 1 || year > 9999 {
		return 0, invalid("year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return 0, invalid("month %d out of range 1..12", month)
	}
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day(), nil
}

func (gregorian) toGregorian(year, month, day int) (int, time.Month, int) {
	return year, time.Month(month), day
}

func (gregorian) fromGregorian(t time.Time) (int, int, int) {
	return t.Year(), int(t.Month()), t.Day()
}
