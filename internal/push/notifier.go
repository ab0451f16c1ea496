package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/choreday/internal/model"
)

// Sender delivers a payload to one subscription.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// Subscriptions looks up and prunes push subscriptions.
type Subscriptions interface {
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Households resolves a household's current members.
type Households interface {
	GetByID(ctx context.Context, id string) (*model.Household, error)
}

// Notifier turns task events into push notifications. Delivery failures are
// logged and never returned to the caller.
type Notifier struct {
	sender     Sender
	subs       Subscriptions
	households Households
	logger     *slog.Logger
}

func NewNotifier(sender Sender, subs Subscriptions, households Households, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, subs: subs, households: households, logger: logger}
}

// NotifyReaction tells a task's creator that someone thanked them. Other
// reaction kinds, self-reactions and generated tasks are not announced.
func (n *Notifier) NotifyReaction(ctx context.Context, task *model.Task, fromUserID, fromName, kind string) {
	if kind != model.ReactionThanks || task.UserID == "" || task.UserID == model.SystemUserID || task.UserID == fromUserID {
		return
	}
	subs, err := n.subs.ListByUser(ctx, task.UserID)
	if err != nil {
		n.logger.Error("list push subscriptions", "user", task.UserID, "error", err)
		return
	}

	who := fromName
	if who == "" {
		who = "Someone"
	}
	n.deliver(ctx, subs, Payload{
		Title: "Thanks!",
		Body:  fmt.Sprintf("%s thanked you for %s", who, task.Title),
		URL:   "/tasks?dateKey=" + task.DateKey,
		Tag:   "thanks-" + task.ID,
	})
}

// NotifyGenerated tells every subscribed household member that today's list
// is ready. Members are read when sending, so users who joined or left since
// subscribing are routed by where they belong now.
func (n *Notifier) NotifyGenerated(ctx context.Context, householdID string, titles []string) {
	members, err := n.members(ctx, householdID)
	if err != nil {
		n.logger.Error("resolve household members", "household", householdID, "error", err)
		return
	}

	var subs []model.PushSubscription
	for _, userID := range members {
		userSubs, err := n.subs.ListByUser(ctx, userID)
		if err != nil {
			n.logger.Error("list push subscriptions", "user", userID, "error", err)
			continue
		}
		subs = append(subs, userSubs...)
	}

	body := fmt.Sprintf("%d tasks for today", len(titles))
	if len(titles) == 1 {
		body = fmt.Sprintf("Task for today: %s", titles[0])
	}
	n.deliver(ctx, subs, Payload{
		Title: "Today's tasks",
		Body:  body,
		URL:   "/tasks",
		Tag:   "daily-tasks",
	})
}

// members returns the household's member ids. A household without a
// document is a personal one whose id is its only user's id.
func (n *Notifier) members(ctx context.Context, householdID string) ([]string, error) {
	h, err := n.households.GetByID(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return []string{householdID}, nil
	}
	return h.Members, nil
}

func (n *Notifier) deliver(ctx context.Context, subs []model.PushSubscription, payload Payload) {
	for _, sub := range subs {
		err := n.sender.Send(&sub, payload)
		if errors.Is(err, ErrExpired) {
			if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				n.logger.Error("delete expired push subscription", "error", err)
			}
			continue
		}
		if err != nil {
			n.logger.Warn("send push notification", "user", sub.UserID, "tag", payload.Tag, "error", err)
		}
	}
}
