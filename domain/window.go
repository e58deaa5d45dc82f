package domain

import "time"

// DateRange is an inclusive calendar-date interval. Empty bounds mean the
// range is not set.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Valid reports whether both bounds are present, parseable and ordered.
func (r DateRange) Valid() bool {
	if r.Start == "" || r.End == "" {
		return false
	}
	if _, err := time.Parse(DateLayout, r.Start); err != nil {
		return false
	}
	if _, err := time.Parse(DateLayout, r.End); err != nil {
		return false
	}
	return r.Start <= r.End
}

// Contains reports whether date falls inside the range, inclusive. An unset
// range contains everything.
func (r DateRange) Contains(date string) bool {
	if r.Start == "" && r.End == "" {
		return true
	}
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// CurrentWorkWeek returns Monday through Friday of the week containing now,
// ascending.
func CurrentWorkWeek(now time.Time) []string {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -daysSinceMonday)
	dates := make([]string, 5)
	for i := range dates {
		dates[i] = monday.AddDate(0, 0, i).Format(DateLayout)
	}
	return dates
}

// DisplayDates expands an explicit valid range into every calendar day it
// covers, ascending; without one it falls back to the current work week.
func DisplayDates(r DateRange, now time.Time) []string {
	if !r.Valid() {
		return CurrentWorkWeek(now)
	}
	start, _ := time.Parse(DateLayout, r.Start)
	end, _ := time.Parse(DateLayout, r.End)
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

// Window is the due-date interval a live subscription is scoped to.
type Window struct {
	Start string
	End   string
}

// SubscriptionWindow derives the window backing the live query: the explicit
// range when valid, otherwise the current work week.
func SubscriptionWindow(r DateRange, now time.Time) Window {
	dates := DisplayDates(r, now)
	return Window{Start: dates[0], End: dates[len(dates)-1]}
}
