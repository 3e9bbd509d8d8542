// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// Package auth implements the credential and session lifecycle core of Aegis.
//
// # Architecture
//
// Entities in this file represent the "Truth" of the system. They have no
// dependencies on outer layers (databases, HTTP, email). All storage access
// goes through the interfaces in store.go, and all cryptography through
// the platform sec package.
package auth

import (
	"time"

	"github.com/mkrogh/aegis/internal/platform/sec"
)

// User represents a registered account.
//
// # Rules
//   - Email is unique and compared case-insensitively (Unicode case folding).
//   - PasswordHash is generated via bcrypt exclusively inside the service
//     layer and never leaves the service boundary in responses.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string       `json:"display_name"`
	Phone        string       `json:"phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	TenantID     string       `json:"tenant_id,omitempty"`
	Role         sec.UserRole `json:"role"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Sanitized returns a copy of the user with the password hash cleared.
//
// Repository lookups used outside credential validation go through this, so
// a hash can never accidentally travel up the call stack.
func (u *User) Sanitized() *User {
	clone := *u
	clone.PasswordHash = ""
	return &clone
}

// RefreshToken is one durable refresh-token record.
//
// # Security Concept
//
// Access tokens (JWT) are stateless and cannot be revoked before expiry.
// Aegis pairs short-lived JWTs with long-lived refresh records in the
// database. The raw refresh secret is bcrypt-hashed per record with its own
// salt, so the table cannot be indexed by token value; matching a presented
// token means verifying it against each of the owner's active records.
//
// # States
//
// A record is active until it is rotated (replaced during refresh), revoked
// (logout or password reset), or expired. All three are terminal, and a
// non-active record must never authorize a refresh.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"` // bcrypt hash of the raw secret. Omitted for security.
	UserAgent string     `json:"user_agent"`
	IPAddress string     `json:"ip_address"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Active reports whether the record may still authorize a refresh.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// PasswordReset is one durable password-reset record (token-link flow).
//
// # Rules
//   - UsedAt is set at most once; a used or expired record cannot satisfy a reset.
//   - TokenHash is a bcrypt hash of the raw link token, salted per record.
type PasswordReset struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ChallengePurpose distinguishes the two OTP challenge flows.
//
// The purpose is part of every challenge cache key, so a code sent for
// registration can never verify a password reset and vice versa.
type ChallengePurpose string

const (
	// PurposeRegister gates account creation on proof of email control.
	PurposeRegister ChallengePurpose = "register"

	// PurposeReset gates password recovery on proof of email control.
	PurposeReset ChallengePurpose = "reset"
)

// Valid reports whether the value is one of the known purposes.
func (p ChallengePurpose) Valid() bool {
	return p == PurposeRegister || p == PurposeReset
}

// SessionMeta carries request-level metadata persisted with refresh records.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// TokenPair is the product of a successful login, registration, or refresh.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}
