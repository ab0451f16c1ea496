package websocket

import (
	"strings"

	"github.com/dukerupert/choreday/internal/docstore"
)

// Follow forwards committed document changes to the hub until the returned
// function is called.
func (h *Hub) Follow(db docstore.Store) (stop func()) {
	return db.OnChange(func(c docstore.Change) {
		householdID, msg, ok := messageFor(c)
		if ok {
			h.Broadcast(householdID, msg)
		}
	})
}

// messageFor maps a change onto the household that should hear about it.
// Stamp changes are not sent on their own since the task's counter update in
// the same commit already is.
func messageFor(c docstore.Change) (string, Message, bool) {
	action := string(c.Kind)
	parts := strings.Split(c.Collection, "/")

	switch {
	case c.Collection == "tasks":
		householdID, _ := c.Data["householdId"].(string)
		if householdID == "" {
			return "", Message{}, false
		}
		extra := map[string]any{"dateKey": c.Data["dateKey"]}
		return householdID, NewMessage("task", action, c.ID, extra), true
	case len(parts) == 3 && parts[0] == "default_tasks" && parts[2] == "items":
		return parts[1], NewMessage("template", action, c.ID, nil), true
	case c.Collection == "households":
		return c.ID, NewMessage("household", action, c.ID, nil), true
	}
	return "", Message{}, false
}
