package service

import (
	"time"

	"wealthdesk/internal/models"
)

// Business dates are calendar dates: normalized to midnight UTC and
// compared by year/month/day. "Today" is derived from the wall clock in
// the business timezone before normalizing.

// DateOnly returns the calendar date of t as observed in loc, at
// midnight UTC.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same calendar date (UTC
// fields; both sides are expected to be normalized via DateOnly).
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// AddMonthsClamped advances a calendar date by the given number of
// months, clamping the day-of-month to the target month's length
// (Jan 31 + 1 month = Feb 28/29). time.AddDate is unsuitable here
// because it rolls overflow into the next month.
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.UTC().Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// NextExecutionDate computes the due date after `executed` completed
// installments: the start date advanced by one step per installment
// (monthly = 1 month, quarterly = 3 months).
func NextExecutionDate(start time.Time, frequency string, executed int) time.Time {
	step := 1
	if frequency == models.FrequencyQuarterly {
		step = 3
	}
	return AddMonthsClamped(DateOnly(start, time.UTC), step*executed)
}
