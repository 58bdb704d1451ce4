package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// WeekStart returns the most recent Monday 00:00 in loc. Sunday belongs to
// the week that started six days earlier.
func WeekStart(asOf time.Time, loc *time.Location) time.Time {
	day := StartOfDay(asOf, loc)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// WorkWeek returns the Monday 00:00 to Saturday 23:59:59.999999999 window
// containing asOf.
func WorkWeek(asOf time.Time, loc *time.Location) (time.Time, time.Time) {
	start := WeekStart(asOf, loc)
	end := start.AddDate(0, 0, 6).Add(-time.Nanosecond)
	return start, end
}

// MonthStart returns the first day of t's month at midnight in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// InMidMonthWindow reports whether asOf falls on a day in [startDay, endDay].
func InMidMonthWindow(asOf time.Time, loc *time.Location, startDay, endDay int) bool {
	d := asOf.In(loc).Day()
	return d >= startDay && d <= endDay
}

// EndMonthPeriod reports whether asOf is inside the end-month window, which
// opens on the last day of a month and closes after graceDays of the next.
// The returned month is the pay month the window settles.
func EndMonthPeriod(asOf time.Time, loc *time.Location, graceDays int) (time.Time, bool) {
	local := asOf.In(loc)
	if local.Day() == DaysInMonth(local) {
		return MonthStart(local, loc), true
	}
	if local.Day() <= graceDays {
		return MonthStart(local, loc).AddDate(0, -1, 0), true
	}
	return time.Time{}, false
}

// IsPositiveMultiple reports whether amount is > 0 and divisible by step.
func IsPositiveMultiple(amount, step decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if step.IsZero() {
		return true
	}
	return amount.Mod(step).IsZero()
}

// DailySalaryCredit is the amount credited per attended day for a monthly salary.
func DailySalaryCredit(salary decimal.Decimal, workingDays int) decimal.Decimal {
	if workingDays <= 0 || !salary.IsPositive() {
		return decimal.Zero
	}
	return salary.Div(decimal.NewFromInt(int64(workingDays))).Floor()
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// FloorZero clamps negative values to zero.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
