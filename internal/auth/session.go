// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkrogh/aegis/internal/platform/apperr"
	"github.com/mkrogh/aegis/internal/platform/ctxutil"
	"github.com/mkrogh/aegis/internal/platform/sec"
	"github.com/mkrogh/aegis/pkg/uuidv7"
)

// SessionService orchestrates the token service and refresh-token records to
// implement login, rotation, and logout.
//
// # Rotation Ordering
//
// Within a single rotation, the old record is revoked before the new pair is
// minted and persisted. If issuance fails after revocation, the session is
// lost and the user must re-authenticate. That is deliberate fail-safe-closed
// behavior: the alternative (new pair issued while the old record is still
// active) would let one raw token authorize two sessions.
type SessionService struct {
	tokens  *TokenService
	records RefreshTokenRepository
}

// NewSessionService constructs a [SessionService].
func NewSessionService(tokens *TokenService, records RefreshTokenRepository) *SessionService {
	return &SessionService{
		tokens:  tokens,
		records: records,
	}
}

/*
CreateSession mints a token pair and persists the refresh half as active.

Parameters:
  - ctx: Context for persistence.
  - user: The authenticated account (already validated by the caller).
  - meta: Request metadata stored alongside the record.

Returns:
  - *TokenPair: The freshly minted pair.
  - error: If persistence fails, no tokens are returned; the session must
    be treated as never having been created.
*/
func (service *SessionService) CreateSession(ctx context.Context, user *User, meta SessionMeta) (*TokenPair, error) {
	// ── 1. Mint the Pair ──────────────────────────────────────────────────

	accessToken, refreshToken, err := service.tokens.SignTokenPair(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("session_service_sign_failed: %w", err)
	}

	// ── 2. Persist the Refresh Record ─────────────────────────────────────

	expiresAt := service.tokens.RefreshExpiry()
	if err := service.persistRefreshToken(ctx, user.ID, refreshToken, meta, expiresAt); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: expiresAt,
	}, nil
}

// persistRefreshToken hashes the raw refresh token and stores its record.
func (service *SessionService) persistRefreshToken(ctx context.Context, userID, rawToken string, meta SessionMeta, expiresAt time.Time) error {
	tokenHash, err := sec.HashSecret(rawToken)
	if err != nil {
		return fmt.Errorf("session_service_hash_failed: %w", err)
	}

	record := &RefreshToken{
		ID:        uuidv7.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: expiresAt,
	}

	if err := service.records.Create(ctx, record); err != nil {
		return fmt.Errorf("session_service_persist_failed: %w", err)
	}

	return nil
}

/*
RefreshSession implements single-use refresh token rotation.

Flow:
 1. Verify the token's signature and lifetime (fail closed).
 2. Match the raw token against the owner's bounded active-record set.
 3. No active match: check recently revoked records. A hit means a rotated
    token is being replayed, which revokes the whole family (breach
    containment) before failing.
 4. Conditionally revoke the matched record. Losing the revoke race to a
    concurrent rotation of the same token fails this call; at most one
    racer ever obtains a new pair.
 5. Mint and persist the replacement pair.

All failure modes surface the same InvalidRefreshToken signal; the caller
cannot distinguish wrong, expired, rotated, or revoked tokens.
*/
func (service *SessionService) RefreshSession(ctx context.Context, rawToken string, meta SessionMeta) (*TokenPair, error) {
	// ── 1. Signature Verification ─────────────────────────────────────────

	claims, err := service.tokens.VerifyRefreshToken(rawToken)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 2. Active Record Match ────────────────────────────────────────────

	record, err := service.findActiveMatch(ctx, claims.UserID, rawToken)
	if err != nil {
		return nil, err
	}

	if record == nil {
		// ── 3. Replay Detection ───────────────────────────────────────────
		if err := service.detectReplay(ctx, claims.UserID, rawToken); err != nil {
			return nil, err
		}
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 4. Rotation (Conditional Revoke) ──────────────────────────────────

	revoked, err := service.records.Revoke(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("session_service_revoke_failed: %w", err)
	}
	if !revoked {
		// A concurrent rotation won the race for this record.
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 5. Issue the Replacement Pair ─────────────────────────────────────

	accessToken, newRefreshToken, err := service.tokens.SignTokenPair(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return nil, fmt.Errorf("session_service_refresh_sign_failed: %w", err)
	}

	expiresAt := service.tokens.RefreshExpiry()
	if err := service.persistRefreshToken(ctx, claims.UserID, newRefreshToken, meta, expiresAt); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          newRefreshToken,
		RefreshTokenExpiresAt: expiresAt,
	}, nil
}

// findActiveMatch loads the user's bounded active-record set newest first and
// hash-verifies the raw token against each candidate.
//
// bcrypt is the equality primitive here; the per-record salt means equal
// secrets hash differently, so value-indexed lookup is impossible by design.
func (service *SessionService) findActiveMatch(ctx context.Context, userID, rawToken string) (*RefreshToken, error) {
	candidates, err := service.records.ListActive(ctx, userID, MaxActiveTokenScan)
	if err != nil {
		return nil, fmt.Errorf("session_service_list_active_failed: %w", err)
	}

	for _, candidate := range candidates {
		if sec.CheckSecretHash(rawToken, candidate.TokenHash) {
			return candidate, nil
		}
	}

	return nil, nil
}

// detectReplay checks whether the presented token matches an already-revoked
// record. A hit means a rotated secret is being reused, so every session in
// the family is revoked before the caller reports failure.
func (service *SessionService) detectReplay(ctx context.Context, userID, rawToken string) error {
	revoked, err := service.records.ListRecentlyRevoked(ctx, userID, MaxRevokedTokenScan)
	if err != nil {
		return fmt.Errorf("session_service_list_revoked_failed: %w", err)
	}

	for _, candidate := range revoked {
		if sec.CheckSecretHash(rawToken, candidate.TokenHash) {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "refresh_token_replay_detected",
				slog.String("user_id", userID),
				slog.String("record_id", candidate.ID),
			)

			if err := service.records.RevokeAll(ctx, userID); err != nil {
				return fmt.Errorf("session_service_replay_revoke_all_failed: %w", err)
			}

			return apperr.Unauthorized("Invalid or expired refresh token")
		}
	}

	return nil
}

// TerminateSession revokes every active refresh record for the user
// (logout-everywhere). Idempotent: terminating a user with no active
// sessions is a no-op.
func (service *SessionService) TerminateSession(ctx context.Context, userID string) error {
	if err := service.records.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("session_service_terminate_failed: %w", err)
	}
	return nil
}

// PurgeExpired removes refresh records past their expiration instant.
func (service *SessionService) PurgeExpired(ctx context.Context) error {
	return service.records.DeleteExpired(ctx)
}
