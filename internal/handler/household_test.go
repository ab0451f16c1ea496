package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/choreday/internal/auth"
	"github.com/dukerupert/choreday/internal/model"
	"github.com/dukerupert/choreday/internal/store"
)

func setupHouseholdHandler(t *testing.T) (*HouseholdHandler, *store.HouseholdStore) {
	t.Helper()
	db := setupHandlerDB(t)
	hs := store.NewHouseholdStore(db)
	return NewHouseholdHandler(hs, store.NewUserStore(db), discardLogger()), hs
}

func TestHouseholdCreateJoinLeave(t *testing.T) {
	h, hs := setupHouseholdHandler(t)
	owner := auth.AuthContext{UserID: "u1", HouseholdID: "u1"}

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/households", map[string]string{"name": "Tanaka"}, owner))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created model.Household
	decodeBody(t, rec, &created)

	joiner := auth.AuthContext{UserID: "u2", HouseholdID: "u2"}
	rec = httptest.NewRecorder()
	h.Join(rec, authedRequest(http.MethodPost, "/api/households/join", map[string]string{"inviteCode": created.InviteCode}, joiner))
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d", rec.Code)
	}

	member := auth.AuthContext{UserID: "u2", HouseholdID: created.ID}
	rec = httptest.NewRecorder()
	h.Get(rec, authedRequest(http.MethodGet, "/api/household", nil, member))
	var got model.Household
	decodeBody(t, rec, &got)
	if got.ID != created.ID || len(got.Members) != 2 {
		t.Errorf("household = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.Leave(rec, authedRequest(http.MethodPost, "/api/household/leave", nil, member))
	if rec.Code != http.StatusOK {
		t.Fatalf("leave status = %d", rec.Code)
	}
	after, _ := hs.GetByID(context.Background(), created.ID)
	if after.HasMember("u2") {
		t.Error("u2 still a member after leaving")
	}
}

func TestHouseholdJoinUnknownInvite(t *testing.T) {
	h, _ := setupHouseholdHandler(t)

	rec := httptest.NewRecorder()
	h.Join(rec, authedRequest(http.MethodPost, "/", map[string]string{"inviteCode": "ZZZZZZ"}, aki))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHouseholdRegenerateInviteRequiresMember(t *testing.T) {
	h, hs := setupHouseholdHandler(t)
	created, err := hs.Create(context.Background(), "u1", "home")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	outsider := auth.AuthContext{UserID: "u9", HouseholdID: created.ID}
	rec := httptest.NewRecorder()
	h.RegenerateInvite(rec, authedRequest(http.MethodPost, "/", nil, outsider))
	if rec.Code != http.StatusForbidden {
		t.Errorf("outsider status = %d, want 403", rec.Code)
	}

	owner := auth.AuthContext{UserID: "u1", HouseholdID: created.ID}
	rec = httptest.NewRecorder()
	h.RegenerateInvite(rec, authedRequest(http.MethodPost, "/", nil, owner))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner status = %d", rec.Code)
	}
	var body struct {
		InviteCode string `json:"inviteCode"`
	}
	decodeBody(t, rec, &body)
	after, _ := hs.GetByID(context.Background(), created.ID)
	if body.InviteCode == "" || after.InviteCode != body.InviteCode {
		t.Errorf("invite code = %q, stored %q", body.InviteCode, after.InviteCode)
	}
}

func TestHouseholdGetPersonal(t *testing.T) {
	h, _ := setupHouseholdHandler(t)

	rec := httptest.NewRecorder()
	h.Get(rec, authedRequest(http.MethodGet, "/", nil, auth.AuthContext{UserID: "u5", HouseholdID: "u5"}))
	var body struct {
		ID       string `json:"id"`
		Personal bool   `json:"personal"`
	}
	decodeBody(t, rec, &body)
	if body.ID != "u5" || !body.Personal {
		t.Errorf("body = %+v", body)
	}
}

func TestProfileUpdate(t *testing.T) {
	h, _ := setupHouseholdHandler(t)

	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, authedRequest(http.MethodPut, "/api/profile", map[string]string{"name": " Aki "}, aki))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Profile(rec, authedRequest(http.MethodGet, "/api/profile", nil, aki))
	var profile model.UserProfile
	decodeBody(t, rec, &profile)
	if profile.Name != "Aki" {
		t.Errorf("name = %q, want Aki", profile.Name)
	}

	rec = httptest.NewRecorder()
	h.UpdateProfile(rec, authedRequest(http.MethodPut, "/api/profile", map[string]string{"name": ""}, aki))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", rec.Code)
	}
}
