package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:      "u1",
		HouseholdID: "fam1",
		Name:        "Aki",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got != ac {
		t.Errorf("got %+v, want %+v", got, ac)
	}
	if UserID(ctx) != "u1" {
		t.Errorf("UserID = %q, want u1", UserID(ctx))
	}
	if HouseholdID(ctx) != "fam1" {
		t.Errorf("HouseholdID = %q, want fam1", HouseholdID(ctx))
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected false for missing AuthContext")
	}
	if UserID(context.Background()) != "" || HouseholdID(context.Background()) != "" {
		t.Error("expected empty ids for missing context")
	}
}

func TestSignAndParseToken(t *testing.T) {
	secret := []byte("test-secret")
	raw, err := SignToken(secret, "u1", "Aki", "aki@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseToken(secret, raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Name != "Aki" || claims.Email != "aki@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseTokenRejects(t *testing.T) {
	secret := []byte("test-secret")
	expired, _ := SignToken(secret, "u1", "", "", -time.Minute)
	wrongKey, _ := SignToken([]byte("other"), "u1", "", "", time.Hour)
	noSubject, _ := SignToken(secret, "", "", "", time.Hour)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString(secret)
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)

	tests := map[string]string{
		"garbage":    "not-a-token",
		"expired":    expired,
		"wrong key":  wrongKey,
		"no subject": noSubject,
		"no expiry":  noExpiry,
		"hs512":      hs512,
	}
	for name, raw := range tests {
		if _, err := ParseToken(secret, raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}
