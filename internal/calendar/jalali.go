package calendar

import "time"

// jalaliBreaks are the years in which the 33-year leap cycle is re-anchored.
var jalaliBreaks = [...]int{
	-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181, 1210,
	1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178,
}

type jalali struct{}

// jalaliYear describes one Jalali year: whether it is leap (leap == 0), the
// Gregorian year in which it starts and the March day of its first day.
type jalaliYear struct {
	leap  int
	gy    int
	march int
}

func jalaliValidYear(jy int) bool {
	return jy >= jalaliBreaks[0] && jy < jalaliBreaks[len(jalaliBreaks)-1]
}

func jalaliCal(jy int) jalaliYear {
	gy := jy + 621
	leapJ := -14
	jp := jalaliBreaks[0]
	jump := 0

	for i := 1; i < len(jalaliBreaks); i++ {
		jm := jalaliBreaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += jump/33*8 + jump%33/4
		jp = jm
	}

	n := jy - jp
	leapJ += n/33*8 + (n%33+3)/4
	if jump%33 == 4 && jump-n == 4 {
		leapJ++
	}

	leapG := gy/4 - (gy/100+1)*3/4 - 150
	march := 20 + leapJ - leapG

	if jump-n < 6 {
		n = n - jump + (jump+4)/33*33
	}
	leap := ((n+1)%33 - 1) % 4
	if leap == -1 {
		leap = 4
	}

	return jalaliYear{leap: leap, gy: gy, march: march}
}

func (jalali) monthLength(year, month int) (int, error) {
	if !jalaliValidYear(year) {
		return 0, invalid("year %d out of range", year)
	}
	switch {
	case month < 1 || month > 12:
		return 0, invalid("month %d out of range 1..12", month)
	case month <= 6:
		return 31, nil
	case month <= 11:
		return 30, nil
	case jalaliCal(year).leap == 0:
		return 30, nil
	default:
		return 29, nil
	}
}

// dayNumber counts days since the Unix epoch for a Gregorian date.
func dayNumber(y int, m time.Month, d int) int {
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func fromDayNumber(n int) time.Time {
	return time.Unix(int64(n)*86400, 0).UTC()
}

func (jalali) toGregorian(year, month, day int) (int, time.Month, int) {
	r := jalaliCal(year)
	n := dayNumber(r.gy, time.March, r.march) + (month-1)*31 - month/7*(month-7) + day - 1
	t := fromDayNumber(n)
	return t.Year(), t.Month(), t.Day()
}

func (jalali) fromGregorian(t time.Time) (int, int, int) {
	n := dayNumber(t.Year(), t.Month(), t.Day())
	gy := t.Year()
	jy := gy - 621
	r := jalaliCal(jy)
	k := n - dayNumber(gy, time.March, r.march)

	if k >= 0 {
		if k <= 185 {
			return jy, 1 + k/31, k%31 + 1
		}
		k -= 186
	} else {
		jy--
		k += 179
		if r.leap == 1 {
			k++
		}
	}
	return jy, 7 + k/30, k%30 + 1
}
