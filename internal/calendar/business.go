// Package calendar implements the business-day calendar used to reindex
// per-symbol series: weekdays excluding US federal holidays, with
// Saturday holidays observed the preceding Friday and Sunday holidays the
// following Monday.
package calendar

import (
	"sync"
	"time"
)

// IsBusinessDay reports whether d (a calendar date) is a trading day.
func IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !IsHoliday(d)
}

// IsHoliday reports whether d falls on an observed federal holiday.
func IsHoliday(d time.Time) bool {
	_, ok := holidaysFor(d.Year())[monthDay(d)]
	return ok
}

// Next returns the first business day strictly after d.
func Next(d time.Time) time.Time {
	for {
		d = d.AddDate(0, 0, 1)
		if IsBusinessDay(d) {
			return d
		}
	}
}

// Range returns every business day in [start, end], inclusive on both
// ends. Inputs are truncated to their UTC calendar dates.
func Range(start, end time.Time) []time.Time {
	start = midnight(start)
	end = midnight(end)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type monthDayKey struct {
	month time.Month
	day   int
}

func monthDay(d time.Time) monthDayKey {
	return monthDayKey{d.Month(), d.Day()}
}

var (
	holidayMu    sync.Mutex
	holidayCache = make(map[int]map[monthDayKey]struct{})
)

// holidaysFor returns the observed holiday dates falling within year.
func holidaysFor(year int) map[monthDayKey]struct{} {
	holidayMu.Lock()
	defer holidayMu.Unlock()

	if cached, ok := holidayCache[year]; ok {
		return cached
	}

	set := make(map[monthDayKey]struct{})
	add := func(d time.Time) {
		if d.Year() == year {
			set[monthDay(d)] = struct{}{}
		}
	}
	for _, d := range rawHolidays(year) {
		add(observed(d))
	}
	// New Year's Day of the following year observes on Dec 31 when
	// Jan 1 is a Saturday.
	add(observed(time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)))

	holidayCache[year] = set
	return set
}

// rawHolidays lists the unobserved US federal holiday dates for a year.
func rawHolidays(year int) []time.Time {
	days := []time.Time{
		time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3),         // Martin Luther King Jr. Day
		nthWeekday(year, time.February, time.Monday, 3),        // Washington's Birthday
		lastWeekday(year, time.May, time.Monday),               // Memorial Day
		time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC),    // Independence Day
		nthWeekday(year, time.September, time.Monday, 1),       // Labor Day
		nthWeekday(year, time.October, time.Monday, 2),         // Columbus Day
		time.Date(year, time.November, 11, 0, 0, 0, 0, time.UTC), // Veterans Day
		nthWeekday(year, time.November, time.Thursday, 4),        // Thanksgiving
		time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC), // Christmas
	}
	if year >= 2021 {
		days = append(days, time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)) // Juneteenth
	}
	return days
}

// observed shifts a holiday landing on a weekend to the nearest weekday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nthWeekday returns the n-th weekday of a month (n >= 1).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last weekday of a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}
