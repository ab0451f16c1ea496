package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/choreday/internal/auth"
	"github.com/dukerupert/choreday/internal/store"
)

type HouseholdHandler struct {
	households *store.HouseholdStore
	users      *store.UserStore
	logger     *slog.Logger
}

func NewHouseholdHandler(hs *store.HouseholdStore, us *store.UserStore, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: hs, users: us, logger: logger}
}

// Get handles GET /api/household. Users who never created or joined a
// household get their personal id with no document behind it.
func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	household, err := h.households.GetByID(r.Context(), ac.HouseholdID)
	if err != nil {
		h.logger.Error("get household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	if household == nil || !household.HasMember(ac.UserID) {
		writeJSON(w, http.StatusOK, map[string]any{"id": ac.HouseholdID, "personal": true})
		return
	}
	writeJSON(w, http.StatusOK, household)
}

type householdRequest struct {
	Name       string `json:"name"`
	InviteCode string `json:"inviteCode"`
}

// Create handles POST /api/households.
func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	household, err := h.households.Create(r.Context(), auth.UserID(r.Context()), req.Name)
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}
	writeJSON(w, http.StatusCreated, household)
}

// Join handles POST /api/households/join.
func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.InviteCode) == "" {
		writeError(w, http.StatusBadRequest, "inviteCode is required")
		return
	}

	id, err := h.households.JoinByInvite(r.Context(), auth.UserID(r.Context()), req.InviteCode)
	if errors.Is(err, store.ErrInviteNotFound) {
		writeError(w, http.StatusNotFound, "invite code not found")
		return
	}
	if err != nil {
		h.logger.Error("join household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"householdId": id})
}

// Leave handles POST /api/households/leave.
func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	err := h.households.Leave(r.Context(), ac.UserID, ac.HouseholdID)
	if errors.Is(err, store.ErrHouseholdNotFound) {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}
	if err != nil {
		h.logger.Error("leave household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to leave household")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"householdId": ac.UserID})
}

// RegenerateInvite handles POST /api/households/invite. Only members may
// replace the code.
func (h *HouseholdHandler) RegenerateInvite(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	household, err := h.households.GetByID(r.Context(), ac.HouseholdID)
	if err != nil {
		h.logger.Error("get household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	if household == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}
	if !household.HasMember(ac.UserID) {
		writeError(w, http.StatusForbidden, "not a member of this household")
		return
	}

	code, err := h.households.RegenerateInviteCode(r.Context(), household.ID)
	if err != nil {
		h.logger.Error("regenerate invite code", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to regenerate invite code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"inviteCode": code})
}

// Profile handles GET /api/profile.
func (h *HouseholdHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/profile.
func (h *HouseholdHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	profile, err := h.users.UpdateName(r.Context(), auth.UserID(r.Context()), req.Name)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
