package model

import "time"

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// SystemUserID is the creator recorded on tasks made by the daily generator.
const SystemUserID = "system"

// Reaction kinds the app offers. Any other non-empty kind is stored as-is.
const (
	ReactionThanks   = "thanks"
	ReactionLike     = "like"
	ReactionParty    = "party"
	ReactionHeart    = "heart"
	ReactionSmile    = "smile"
	ReactionSparkles = "sparkles"
)

var ReactionKinds = []string{
	ReactionThanks, ReactionLike, ReactionParty, ReactionHeart, ReactionSmile, ReactionSparkles,
}

type Task struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	UserID            string         `json:"userId"`
	UserName          string         `json:"userName,omitempty"`
	HouseholdID       string         `json:"householdId"`
	Status            TaskStatus     `json:"status"`
	DateKey           string         `json:"dateKey"`
	CreatedAt         *time.Time     `json:"createdAt,omitempty"`
	ThanksCount       int            `json:"thanksCount"`
	Reactions         map[string]int `json:"reactions"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
	CompletedByUserID string         `json:"completedByUserId,omitempty"`
	CompletedByName   string         `json:"completedByName,omitempty"`
}

// Stamp marks that one user reacted to one task with one kind. Its document
// id is StampID(FromUserID, Type).
type Stamp struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	FromUserID string     `json:"fromUserId"`
	TaskID     string     `json:"taskId"`
	DateKey    string     `json:"dateKey"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

func StampID(userID, kind string) string {
	return userID + "_" + kind
}
