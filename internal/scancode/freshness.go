package scancode

import (
	"strconv"
	"time"
)

const (
	// JulianEpochShiftDays is how far the Julian calendar trails the
	// Gregorian one; the julian-window "today" is the day-of-year of
	// now minus this many days.
	JulianEpochShiftDays = 13
	// JulianBacklogDays is how many days old a julian-dated code may be.
	JulianBacklogDays = 7
	// RollingWindowDays is how many days old a YYMMDD-dated code may be.
	RollingWindowDays = 30
	// RollingLeadDays absorbs clock skew between printer and terminal.
	RollingLeadDays = 1
)

// civilDate truncates t to midnight in its own location
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// JulianToday returns the shifted day-of-year the julian window is anchored on
func JulianToday(now time.Time) int {
	return civilDate(now).AddDate(0, 0, -JulianEpochShiftDays).YearDay()
}

// CheckJulianWindow reports whether a 3-digit day-of-year field lies within
// the last JulianBacklogDays days of the shifted calendar, today included.
// Future days are rejected. Days are compared by walking the calendar so the
// window stays correct across a year boundary.
func CheckJulianWindow(field string, now time.Time) bool {
	if len(field) != 3 || !allDigits(field) {
		return false
	}
	day, err := strconv.Atoi(field)
	if err != nil || day < 1 || day > 366 {
		return false
	}

	anchor := civilDate(now).AddDate(0, 0, -JulianEpochShiftDays)
	for back := 0; back <= JulianBacklogDays; back++ {
		if anchor.AddDate(0, 0, -back).YearDay() == day {
			return true
		}
	}
	return false
}

// CheckRollingWindow reports whether a YYMMDD field is a real calendar date
// between RollingWindowDays days ago and RollingLeadDays days ahead, inclusive.
func CheckRollingWindow(field string, now time.Time) bool {
	date, ok := parseYYMMDD(field, now.Location())
	if !ok {
		return false
	}

	today := civilDate(now)
	earliest := today.AddDate(0, 0, -RollingWindowDays)
	latest := today.AddDate(0, 0, RollingLeadDays)
	return !date.Before(earliest) && !date.After(latest)
}

func parseYYMMDD(field string, loc *time.Location) (time.Time, bool) {
	if len(field) != 6 || !allDigits(field) {
		return time.Time{}, false
	}
	yy, _ := strconv.Atoi(field[0:2])
	mm, _ := strconv.Atoi(field[2:4])
	dd, _ := strconv.Atoi(field[4:6])
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return time.Time{}, false
	}

	date := time.Date(2000+yy, time.Month(mm), dd, 0, 0, 0, 0, loc)
	// time.Date normalises 310231 into March; such fields are not dates.
	if date.Day() != dd || int(date.Month()) != mm {
		return time.Time{}, false
	}
	return date, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
