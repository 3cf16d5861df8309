package domain

import "time"

// DayLayout is the calendar-date format used for quota windows.
const DayLayout = "2006-01-02"

// QuotaCounter counts generation requests for a user on one calendar day.
type QuotaCounter struct {
	UserID    string `json:"user_id"`
	Day       string `json:"day"` // DayLayout, UTC
	Count     int    `json:"count"`
	MaxPerDay int    `json:"max_per_day"` // Limit in force when the row was created; informational
}

// RemainingUnder returns how many requests are left against limit, never below zero.
func (q *QuotaCounter) RemainingUnder(limit int) int {
	if q.Count >= limit {
		return 0
	}
	return limit - q.Count
}

// DayOf returns the UTC calendar day containing t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}
