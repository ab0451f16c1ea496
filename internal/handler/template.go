package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/choreday/internal/auth"
	"github.com/dukerupert/choreday/internal/store"
)

type TemplateHandler struct {
	templates *store.TemplateStore
	logger    *slog.Logger
}

func NewTemplateHandler(ts *store.TemplateStore, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: ts, logger: logger}
}

func validDays(days []int) bool {
	for _, d := range days {
		if d < 0 || d > 6 {
			return false
		}
	}
	return true
}

// List handles GET /api/templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List(r.Context(), auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list templates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

type templateRequest struct {
	Title      string `json:"title"`
	DaysOfWeek []int  `json:"daysOfWeek"`
	Order      *int64 `json:"order"`
}

// Create handles POST /api/templates.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if !validDays(req.DaysOfWeek) {
		writeError(w, http.StatusBadRequest, "daysOfWeek must be between 0 and 6")
		return
	}

	tmpl, err := h.templates.Create(r.Context(), auth.HouseholdID(r.Context()), req.Title, req.DaysOfWeek, req.Order)
	if err != nil {
		h.logger.Error("create template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

// UpdateTitle handles PUT /api/templates/{id}/title.
func (h *TemplateHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	tmpl, err := h.templates.UpdateTitle(r.Context(), auth.HouseholdID(r.Context()), r.PathValue("id"), req.Title)
	if err != nil {
		h.logger.Error("update template title", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update template")
		return
	}
	if tmpl == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// UpdateDays handles PUT /api/templates/{id}/days.
func (h *TemplateHandler) UpdateDays(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validDays(req.DaysOfWeek) {
		writeError(w, http.StatusBadRequest, "daysOfWeek must be between 0 and 6")
		return
	}

	tmpl, err := h.templates.UpdateDays(r.Context(), auth.HouseholdID(r.Context()), r.PathValue("id"), req.DaysOfWeek)
	if err != nil {
		h.logger.Error("update template days", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update template")
		return
	}
	if tmpl == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// Delete handles DELETE /api/templates/{id}.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hid := auth.HouseholdID(r.Context())
	id := r.PathValue("id")

	existing, err := h.templates.GetByID(r.Context(), hid, id)
	if err != nil {
		h.logger.Error("get template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get template")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err := h.templates.Delete(r.Context(), hid, id); err != nil {
		h.logger.Error("delete template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
