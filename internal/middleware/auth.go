package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/choreday/internal/auth"
	"github.com/dukerupert/choreday/internal/model"
)

// AdminKeyHeader carries the plain admin key checked by RequireAdminKey.
const AdminKeyHeader = "X-Admin-Key"

// Profiles loads the caller's profile, creating it on first sight.
type Profiles interface {
	Ensure(ctx context.Context, id, name, email string) (*model.UserProfile, error)
}

func writeError(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// Browsers cannot set headers on WebSocket upgrades.
	return r.URL.Query().Get("access_token")
}

// RequireUser verifies the bearer ID token, loads the caller's profile and
// populates AuthContext.
func RequireUser(secret []byte, profiles Profiles) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
				return
			}
			claims, err := auth.ParseToken(secret, raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			profile, err := profiles.Ensure(r.Context(), claims.Subject, claims.Name, claims.Email)
			if err != nil || profile == nil {
				writeError(w, http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
				return
			}

			ac := auth.AuthContext{
				UserID:      claims.Subject,
				HouseholdID: profile.HouseholdID,
				Name:        profile.Name,
				Email:       profile.Email,
			}
			ctx := auth.WithAuth(r.Context(), ac)
			recordUser(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdminKey checks the X-Admin-Key header against a bcrypt hash. An
// empty hash leaves the route open.
func RequireAdminKey(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				writeError(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HashAdminKey returns the bcrypt hash to configure for key.
func HashAdminKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
