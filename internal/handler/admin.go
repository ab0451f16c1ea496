package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/choreday/internal/generate"
)

// DailyGenerator runs the daily task generation.
type DailyGenerator interface {
	GenerateForHousehold(ctx context.Context, householdID string) (generate.Result, error)
	GenerateAll(ctx context.Context, scope generate.Scope) (generate.BatchResult, error)
}

type AdminHandler struct {
	gen    DailyGenerator
	logger *slog.Logger
}

func NewAdminHandler(gen DailyGenerator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{gen: gen, logger: logger}
}

// Generate handles GET /admin/generate?householdId=... for one household.
// The older houholdId spelling is still accepted.
func (h *AdminHandler) Generate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	householdID := strings.TrimSpace(q.Get("householdId"))
	if householdID == "" {
		householdID = strings.TrimSpace(q.Get("houholdId"))
	}
	if householdID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "householdId is required"})
		return
	}

	res, err := h.gen.GenerateForHousehold(r.Context(), householdID)
	if err != nil {
		h.logger.Error("manual generation failed", "household", householdID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"dateKey": res.DateKey,
		"created": len(res.Created),
		"skipped": len(res.Skipped),
	})
}

// GenerateAll handles GET /admin/generate-all?scope=discover|enumerate.
func (h *AdminHandler) GenerateAll(w http.ResponseWriter, r *http.Request) {
	scope, err := generate.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	batch, err := h.gen.GenerateAll(r.Context(), scope)
	if err != nil {
		h.logger.Error("manual batch generation failed", "scope", string(scope), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	failed := batch.Failed
	if failed == nil {
		failed = []string{}
	}
	resp := map[string]any{
		"ok":         batch.Err == nil,
		"dateKey":    batch.DateKey,
		"households": batch.Households,
		"failed":     failed,
	}
	if batch.Err != nil {
		resp["error"] = batch.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
