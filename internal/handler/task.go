package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/choreday/internal/auth"
	"github.com/dukerupert/choreday/internal/datekey"
	"github.com/dukerupert/choreday/internal/model"
	"github.com/dukerupert/choreday/internal/reaction"
	"github.com/dukerupert/choreday/internal/store"
)

// ReactionNotifier is told about reactions that were added.
type ReactionNotifier interface {
	NotifyReaction(ctx context.Context, task *model.Task, fromUserID, fromName, kind string)
}

type TaskHandler struct {
	tasks    *store.TaskStore
	toggler  *reaction.Toggler
	notifier ReactionNotifier
	now      func() time.Time
	logger   *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, toggler *reaction.Toggler, notifier ReactionNotifier, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, toggler: toggler, notifier: notifier, now: time.Now, logger: logger}
}

// householdTask loads the {id} task and answers 404 unless it belongs to the
// caller's household.
func (h *TaskHandler) householdTask(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	task, err := h.tasks.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return nil, false
	}
	if task == nil || task.HouseholdID != auth.HouseholdID(r.Context()) {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return task, true
}

// List handles GET /api/tasks?dateKey=YYYY-MM-DD, defaulting to today.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	dateKey := r.URL.Query().Get("dateKey")
	if dateKey == "" {
		dateKey = datekey.Key(h.now())
	} else if _, err := datekey.Parse(dateKey); err != nil {
		writeError(w, http.StatusBadRequest, "invalid dateKey")
		return
	}

	tasks, err := h.tasks.ListForDay(r.Context(), auth.HouseholdID(r.Context()), dateKey)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type taskRequest struct {
	Title   string `json:"title"`
	DateKey string `json:"dateKey"`
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.DateKey == "" {
		req.DateKey = datekey.Key(h.now())
	} else if _, err := datekey.Parse(req.DateKey); err != nil {
		writeError(w, http.StatusBadRequest, "invalid dateKey")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	task, err := h.tasks.Create(r.Context(), ac.HouseholdID, ac.UserID, ac.Name, req.Title, req.DateKey)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// UpdateTitle handles PUT /api/tasks/{id}/title.
func (h *TaskHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	task, ok := h.householdTask(w, r)
	if !ok {
		return
	}

	updated, err := h.tasks.UpdateTitle(r.Context(), task.ID, req.Title)
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.logger.Error("update task title", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type statusRequest struct {
	Status model.TaskStatus `json:"status"`
}

// UpdateStatus handles PUT /api/tasks/{id}/status.
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != model.TaskDone && req.Status != model.TaskPending {
		writeError(w, http.StatusBadRequest, "status must be done or pending")
		return
	}
	task, ok := h.householdTask(w, r)
	if !ok {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	updated, err := h.tasks.UpdateStatus(r.Context(), task.ID, req.Status, ac.UserID, ac.Name)
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.logger.Error("update task status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, ok := h.householdTask(w, r)
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), task.ID); err != nil {
		h.logger.Error("delete task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reactionRequest struct {
	Kind string `json:"kind"`
}

// React handles POST /api/tasks/{id}/reactions, toggling the caller's
// reaction of the given kind.
func (h *TaskHandler) React(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !reaction.ValidKind(req.Kind) {
		writeError(w, http.StatusBadRequest, "invalid reaction kind")
		return
	}
	task, ok := h.householdTask(w, r)
	if !ok {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	outcome, err := h.toggler.Toggle(r.Context(), task.ID, ac.UserID, req.Kind)
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
		return
	case errors.Is(err, reaction.ErrStampConflict):
		writeError(w, http.StatusConflict, "reaction conflicts with an existing stamp")
		return
	case err != nil:
		h.logger.Error("toggle reaction", "task", task.ID, "kind", req.Kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle reaction")
		return
	}

	if outcome == reaction.Added && h.notifier != nil {
		go h.notifier.NotifyReaction(context.WithoutCancel(r.Context()), task, ac.UserID, ac.Name, req.Kind)
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": string(outcome)})
}

// MyReactions handles GET /api/reactions/mine?kind=thanks.
func (h *TaskHandler) MyReactions(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = model.ReactionThanks
	}
	ids, err := h.toggler.MyReactions(r.Context(), auth.UserID(r.Context()), kind)
	if errors.Is(err, reaction.ErrInvalidKind) {
		writeError(w, http.StatusBadRequest, "invalid reaction kind")
		return
	}
	if err != nil {
		h.logger.Error("list my reactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "taskIds": ids})
}
