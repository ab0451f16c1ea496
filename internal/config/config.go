// Package config reads runtime settings from CHOREDAY_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dukerupert/choreday/internal/generate"
	"github.com/dukerupert/choreday/internal/schedule"
)

const envPrefix = "CHOREDAY_"

type Config struct {
	Port            string
	DBPath          string
	LogLevel        string
	LogFormat       string
	AuthSecret      string
	AdminKeyHash    string
	GenerateAt      string
	GenerateScope   generate.Scope
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

// ErrMissingAuthSecret is returned by Validate when the server would accept
// tokens signed with an empty key.
var ErrMissingAuthSecret = errors.New(envPrefix + "AUTH_SECRET is required")

func env(name, fallback string) string {
	if v := os.Getenv(envPrefix + name); v != "" {
		return v
	}
	return fallback
}

// Load reads the environment and applies defaults. Malformed values are
// reported; missing required ones are left for Validate.
func Load() (Config, error) {
	cfg := Config{
		Port:            env("PORT", "8080"),
		DBPath:          env("DB_PATH", "choreday.db"),
		LogLevel:        env("LOG_LEVEL", "info"),
		LogFormat:       env("LOG_FORMAT", "text"),
		AuthSecret:      env("AUTH_SECRET", ""),
		AdminKeyHash:    env("ADMIN_KEY_HASH", ""),
		GenerateAt:      env("GENERATE_AT", "05:00"),
		VAPIDPublicKey:  env("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: env("VAPID_PRIVATE_KEY", ""),
	}

	scope, err := generate.ParseScope(env("GENERATE_SCOPE", ""))
	if err != nil {
		return cfg, fmt.Errorf("parse %sGENERATE_SCOPE: %w", envPrefix, err)
	}
	cfg.GenerateScope = scope

	if _, _, err := schedule.ParseTimeOfDay(cfg.GenerateAt); err != nil {
		return cfg, fmt.Errorf("parse %sGENERATE_AT: %w", envPrefix, err)
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return ErrMissingAuthSecret
	}
	return nil
}

// PushEnabled reports whether both VAPID keys are set.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}
