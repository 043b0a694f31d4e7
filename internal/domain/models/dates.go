package models

import "time"

// Day truncates t to its calendar date, dropping the time of day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from "from" to "to". The result is
// negative when "to" falls on an earlier date.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}

// CompletedYears returns the number of full years elapsed between from and to.
func CompletedYears(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	years := to.Year() - from.Year()
	if Day(to).Before(Day(from).AddDate(years, 0, 0)) {
		years--
	}
	return years
}
