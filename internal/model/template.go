package model

import "time"

// DefaultTask is a recurring chore template. DaysOfWeek holds 0=Sunday
// through 6=Saturday, unique and ascending.
type DefaultTask struct {
	ID          string     `json:"id"`
	HouseholdID string     `json:"householdId"`
	Title       string     `json:"title"`
	DaysOfWeek  []int      `json:"daysOfWeek"`
	Order       int64      `json:"order"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// ActiveOn reports whether the template recurs on weekday.
func (d *DefaultTask) ActiveOn(weekday int) bool {
	for _, day := range d.DaysOfWeek {
		if day == weekday {
			return true
		}
	}
	return false
}
