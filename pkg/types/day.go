package types

import (
	"time"

	"cloud.google.com/go/civil"
)

// DayOf returns the calendar date of t as observed in loc.
func DayOf(t time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(t.In(loc))
}

// DaysBetween returns every date from start through end inclusive. It returns
// nil when end is before start.
func DaysBetween(start, end civil.Date) []civil.Date {
	if end.Before(start) {
		return nil
	}
	var days []civil.Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// HoursInDay returns the length of day in loc in whole hours, which is 23 or
// 25 on daylight saving transitions.
func HoursInDay(day civil.Date, loc *time.Location) int {
	return int(day.AddDays(1).In(loc).Sub(day.In(loc)) / time.Hour)
}
