// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, TokenService) via constructors.
  - Fail-Fast: Malformed token lifetimes or missing secrets abort startup,
    never surface at request time.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// minSecretLength is the minimum byte length accepted for JWT signing secrets.
const minSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the Aegis API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// AppURL is the public base URL used to build password-reset links.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:8080"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing. Access and refresh tokens use distinct secrets so that
	// a leaked access secret never lets an attacker mint refresh tokens.
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET,required"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET,required"`

	// Token lifetimes. Parsed as Go durations; a malformed value fails Load.
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_EXPIRES"  envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_EXPIRES" envDefault:"168h"`
	ResetTokenTTL   time.Duration `env:"PASSWORD_RESET_EXPIRES" envDefault:"30m"`

	// Outbound email (SMTP relay)
	SMTPHost   string `env:"SMTP_HOST"`
	SMTPPort   int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser   string `env:"SMTP_USER"`
	SMTPPass   string `env:"SMTP_PASS"`
	SMTPFrom   string `env:"SMTP_FROM"`
	SMTPSecure bool   `env:"SMTP_SECURE" envDefault:"false"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
//
// Beyond tag-level parsing, it enforces the cryptographic invariants that
// the rest of the system assumes: secrets are long enough, distinct, and
// every token lifetime is positive.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing or if a
	// duration field carries a malformed value.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces invariants that struct tags cannot express.
func (c *Config) validate() error {
	if len(c.JWTAccessSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_ACCESS_SECRET must be at least %d bytes", minSecretLength)
	}
	if len(c.JWTRefreshSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_REFRESH_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("config: access and refresh secrets must differ")
	}

	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("config: JWT_ACCESS_EXPIRES must be positive, got %s", c.AccessTokenTTL)
	}
	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("config: JWT_REFRESH_EXPIRES must be positive, got %s", c.RefreshTokenTTL)
	}
	if c.ResetTokenTTL <= 0 {
		return fmt.Errorf("config: PASSWORD_RESET_EXPIRES must be positive, got %s", c.ResetTokenTTL)
	}

	return nil
}

// CORSOrigins returns the comma-separated EXTRA_ORIGINS list as a slice.
// Entries are trimmed; empty entries are dropped.
func (c *Config) CORSOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}
	parts := strings.Split(c.ExtraOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
