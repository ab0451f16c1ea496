package model

import "time"

type PushSubscription struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	HouseholdID string     `json:"householdId"`
	Endpoint    string     `json:"endpoint"`
	P256dhKey   string     `json:"p256dh"`
	AuthKey     string     `json:"auth"`
	DeviceName  string     `json:"deviceName,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}
