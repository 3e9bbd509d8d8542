// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth

import (
	"context"
	"time"
)

// UserRepository defines the data access contract for accounts.
//
// # Review Process
//
// This interface is placed in a separate file from user.go so entity changes
// and storage-contract changes can be reviewed independently by the team.
//
// # Implementations
//
// The canonical implementation is PostgreSQL (store_postgres.go). Tests use
// an in-memory fake.
type UserRepository interface {
	// FindByID returns the account with the given ID, password hash cleared.
	//
	// Returns [apperr.NotFound] if the account does not exist.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail returns the account with the given normalized email,
	// password hash cleared.
	//
	// Returns [apperr.NotFound] if no account is registered with this email.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindForLogin returns the account WITH its password hash populated.
	// This is the only lookup that may carry the hash, and it must be used
	// exclusively for credential validation and password updates.
	FindForLogin(ctx context.Context, email string) (*User, error)

	// Create persists a brand-new account.
	//
	// Returns a wrapped unique-violation error if the email is taken; the
	// service maps it to [apperr.Conflict].
	Create(ctx context.Context, user *User) error

	// UpdatePassword replaces only the account's password hash.
	// Kept separate from profile updates to prevent accidental overwrites.
	UpdatePassword(ctx context.Context, userID, newHash string) error
}

// RefreshTokenRepository defines the data access contract for refresh records.
//
// # Matching Model
//
// Because each record's secret is bcrypt-hashed with its own salt, the store
// cannot look a token up by value. Callers load a bounded candidate set with
// [RefreshTokenRepository.ListActive] and hash-verify each entry.
type RefreshTokenRepository interface {
	// Create persists a new record for an authenticated login or rotation.
	Create(ctx context.Context, record *RefreshToken) error

	// ListActive returns the user's non-revoked, non-expired records,
	// most recent first, capped at limit.
	ListActive(ctx context.Context, userID string, limit int) ([]*RefreshToken, error)

	// ListRecentlyRevoked returns the user's revoked but not yet expired
	// records, most recent first, capped at limit. Consulted for replay
	// detection: a presented token matching one of these means a rotated
	// secret is being reused.
	ListRecentlyRevoked(ctx context.Context, userID string, limit int) ([]*RefreshToken, error)

	// Revoke marks the record revoked, conditional on it still being active.
	//
	// Returns true when this call performed the revocation and false when
	// the record was already revoked or absent. Two concurrent rotations of
	// the same token race on this flag: exactly one observes true.
	Revoke(ctx context.Context, recordID string) (bool, error)

	// RevokeAll revokes every active record belonging to the user.
	// Triggered by logout-everywhere, password resets, and replay detection.
	RevokeAll(ctx context.Context, userID string) error

	// DeleteExpired physically removes records whose ExpiresAt is in the past.
	// Called by the periodic housekeeping sweep to reclaim storage.
	DeleteExpired(ctx context.Context) error
}

// ResetRecordRepository defines the data access contract for durable
// password-reset records (token-link flow).
type ResetRecordRepository interface {
	// Create persists a new reset record.
	Create(ctx context.Context, record *PasswordReset) error

	// ListActive returns unused, unexpired records most recent first,
	// capped at limit. The bound keeps reset confirmation from degenerating
	// into an unbounded table scan.
	ListActive(ctx context.Context, limit int) ([]*PasswordReset, error)

	// ConsumeAndResetPassword atomically, in a single transaction:
	// marks the record used, updates the owner's password hash, and revokes
	// all of the owner's refresh records. A crash mid-way must never leave a
	// used record alongside an unchanged password.
	ConsumeAndResetPassword(ctx context.Context, recordID, userID, newHash string) error

	// DeleteDead removes used and expired records.
	DeleteDead(ctx context.Context) error
}

// ChallengeStore is the volatile storage contract for OTP state: codes,
// attempt counters, resend locks, and reset exchange tokens.
//
// # Implementations
//
// Production uses the namespaced Redis cache (store_redis.go); tests run the
// same implementation against miniredis.
type ChallengeStore interface {
	// StoreCode saves the challenge code for (email, purpose) with a TTL,
	// replacing any previous code.
	StoreCode(ctx context.Context, email string, purpose ChallengePurpose, code string, ttl time.Duration) error

	// Code returns the stored challenge code, or found=false if none exists.
	Code(ctx context.Context, email string, purpose ChallengePurpose) (code string, found bool, err error)

	// DeleteChallenge removes the code and attempt counter together.
	DeleteChallenge(ctx context.Context, email string, purpose ChallengePurpose) error

	// IncrementAttempts bumps the attempt counter and returns the new value.
	// The counter's TTL is bound on first increment so it cannot outlive the
	// challenge window.
	IncrementAttempts(ctx context.Context, email string, purpose ChallengePurpose, ttl time.Duration) (int64, error)

	// AcquireResendLock sets the resend lock if absent. Returns false when a
	// lock is already held, without revealing anything else.
	AcquireResendLock(ctx context.Context, email string, purpose ChallengePurpose, ttl time.Duration) (bool, error)

	// ReleaseResendLock drops the resend lock early. Used when a send fails
	// after the lock was acquired, so the failure does not cost the caller
	// the full cooldown.
	ReleaseResendLock(ctx context.Context, email string, purpose ChallengePurpose) error

	// StoreExchangeToken maps an opaque reset exchange token to an email.
	StoreExchangeToken(ctx context.Context, token, email string, ttl time.Duration) error

	// ConsumeExchangeToken atomically fetches and deletes the mapping.
	// Two concurrent consumers of the same token cannot both observe it.
	ConsumeExchangeToken(ctx context.Context, token string) (email string, found bool, err error)
}

// Notifier is the outbound email contract.
//
// Errors must propagate so the caller can decide whether to roll back
// issuance; the caller in turn decides what (if anything) the client learns.
type Notifier interface {
	// SendChallengeCode emails a one-time verification code.
	SendChallengeCode(ctx context.Context, email, code, purpose string) error

	// SendPasswordResetLink emails a one-click reset URL.
	SendPasswordResetLink(ctx context.Context, email, url string) error
}
