// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkrogh/aegis/internal/platform/apperr"
	"github.com/mkrogh/aegis/internal/platform/ctxutil"
	"github.com/mkrogh/aegis/internal/platform/sec"
	"github.com/mkrogh/aegis/pkg/uuidv7"
)

// PasswordResetService implements the token-link recovery flow: a single-use
// opaque token mailed as a URL, redeemed once to set a new password.
//
// This is the alternative to the OTP-code recovery flow; both are served by
// the same reset endpoint, distinguished by token length.
type PasswordResetService struct {
	users    UserRepository
	records  ResetRecordRepository
	tokens   *TokenService
	notifier Notifier
	appURL   string
}

// NewPasswordResetService constructs a [PasswordResetService].
func NewPasswordResetService(
	users UserRepository,
	records ResetRecordRepository,
	tokens *TokenService,
	notifier Notifier,
	appURL string,
) *PasswordResetService {
	return &PasswordResetService{
		users:    users,
		records:  records,
		tokens:   tokens,
		notifier: notifier,
		appURL:   appURL,
	}
}

/*
RequestReset creates a reset record and emails its raw token as a link.

Anti-enumeration: the call reports success whether or not the email is
registered, and delivery failures are logged but never surfaced: a "we
could not email you" response would confirm the address exists.
*/
func (service *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	logger := ctxutil.GetLogger(ctx)

	// ── 1. Account Lookup (silent on miss) ────────────────────────────────

	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		if apperr.IsAppError(err) {
			// Unknown address. Same outward behavior as the success path.
			return nil
		}
		return fmt.Errorf("reset_service_lookup_failed: %w", err)
	}

	// ── 2. Mint and Persist the Record ────────────────────────────────────

	rawToken, err := service.tokens.GenerateOpaqueSecret(ResetLinkSecretBytes)
	if err != nil {
		return fmt.Errorf("reset_service_token_gen_failed: %w", err)
	}

	tokenHash, err := sec.HashSecret(rawToken)
	if err != nil {
		return fmt.Errorf("reset_service_hash_failed: %w", err)
	}

	record := &PasswordReset{
		ID:        uuidv7.New(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: service.tokens.ResetExpiry(),
	}

	if err := service.records.Create(ctx, record); err != nil {
		return fmt.Errorf("reset_service_persist_failed: %w", err)
	}

	// ── 3. Dispatch the Link (failures stay server-side) ──────────────────

	resetURL := service.appURL + "/reset?token=" + rawToken
	if err := service.notifier.SendPasswordResetLink(ctx, email, resetURL); err != nil {
		logger.ErrorContext(ctx, "reset_link_dispatch_failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	return nil
}

/*
ResetConfirm redeems a raw link token and sets the new password.

Candidate records are fetched bounded (unused, unexpired, newest first) and
hash-verified one by one; value-indexed lookup is impossible because each
record carries its own bcrypt salt. On match, a single transaction marks
the record used, replaces the password hash, and revokes every refresh
record the user holds.
*/
func (service *PasswordResetService) ResetConfirm(ctx context.Context, rawToken, newPassword string) error {
	// ── 1. Candidate Scan ─────────────────────────────────────────────────

	candidates, err := service.records.ListActive(ctx, MaxResetRecordScan)
	if err != nil {
		return fmt.Errorf("reset_service_list_failed: %w", err)
	}

	var matched *PasswordReset
	for _, candidate := range candidates {
		if sec.CheckSecretHash(rawToken, candidate.TokenHash) {
			matched = candidate
			break
		}
	}

	if matched == nil {
		return apperr.Unauthorized("Invalid or expired token")
	}

	// ── 2. Atomic Commit Group ────────────────────────────────────────────

	newHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("reset_service_password_hash_failed: %w", err)
	}

	if err := service.records.ConsumeAndResetPassword(ctx, matched.ID, matched.UserID, newHash); err != nil {
		return err
	}

	return nil
}

// PurgeDead removes used and expired reset records.
func (service *PasswordResetService) PurgeDead(ctx context.Context) error {
	return service.records.DeleteDead(ctx)
}
