package model

import "time"

type Household struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	InviteCode string     `json:"inviteCode"`
	Members    []string   `json:"members"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

// HasMember reports whether userID belongs to the household.
func (h *Household) HasMember(userID string) bool {
	for _, m := range h.Members {
		if m == userID {
			return true
		}
	}
	return false
}

type UserProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	HouseholdID string `json:"householdId"`
}
