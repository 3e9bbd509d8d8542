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
)

// ChallengeService issues, verifies, and exchanges one-time email codes.
//
// # State Machine
//
// Per (email, purpose) pair: none → pending (code sent) → verified
// (consumed) or locked (attempts exhausted), or back to none via TTL.
// A verified or expired challenge leaves no residue; a locked one requires
// a fresh send for a new attempt window.
type ChallengeService struct {
	store    ChallengeStore
	tokens   *TokenService
	notifier Notifier
}

// NewChallengeService constructs a [ChallengeService].
func NewChallengeService(store ChallengeStore, tokens *TokenService, notifier Notifier) *ChallengeService {
	return &ChallengeService{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
	}
}

// purposeText maps a purpose to the wording used in the outbound email.
func purposeText(purpose ChallengePurpose) string {
	if purpose == PurposeReset {
		return "reset your password"
	}
	return "verify your email"
}

/*
Send generates and dispatches a fresh challenge code.

Under an active resend lock the call is a silent no-op: it neither reveals
whether a challenge exists nor resets the attempt counter. An actual send
replaces any previous code, clears the previous attempt counter (fresh
window), and arms a new resend lock. If the send fails after the lock was
acquired, the lock is released again: a delivery failure must not cost the
caller the full cooldown with no code in hand.

Returns:
  - bool: Whether a code was actually dispatched (false under resend lock).
  - error: Store or notifier failures; the notifier error propagates so the
    caller can decide whether silence is required (anti-enumeration paths).
*/
func (service *ChallengeService) Send(ctx context.Context, email string, purpose ChallengePurpose) (bool, error) {
	// ── 1. Resend Lock ────────────────────────────────────────────────────

	acquired, err := service.store.AcquireResendLock(ctx, email, purpose, ChallengeResendLock)
	if err != nil {
		return false, fmt.Errorf("challenge_service_lock_failed: %w", err)
	}
	if !acquired {
		return false, nil
	}

	// ── 2. Fresh Window ───────────────────────────────────────────────────

	code, err := sec.GenerateOTPCode()
	if err != nil {
		return false, service.abortSend(ctx, email, purpose,
			fmt.Errorf("challenge_service_code_gen_failed: %w", err))
	}

	// Clear any stale code and counter before storing the new code, so the
	// new window starts at zero attempts.
	if err := service.store.DeleteChallenge(ctx, email, purpose); err != nil {
		return false, service.abortSend(ctx, email, purpose,
			fmt.Errorf("challenge_service_reset_window_failed: %w", err))
	}
	if err := service.store.StoreCode(ctx, email, purpose, code, ChallengeCodeTTL); err != nil {
		return false, service.abortSend(ctx, email, purpose,
			fmt.Errorf("challenge_service_store_failed: %w", err))
	}

	// ── 3. Dispatch ───────────────────────────────────────────────────────

	if err := service.notifier.SendChallengeCode(ctx, email, code, purposeText(purpose)); err != nil {
		return false, service.abortSend(ctx, email, purpose,
			fmt.Errorf("challenge_service_dispatch_failed: %w", err))
	}

	return true, nil
}

// abortSend releases the resend lock claimed by a failed Send and passes the
// original failure through. The release is best effort; the send error stays
// the primary signal, and a leftover lock expires on its own TTL.
func (service *ChallengeService) abortSend(ctx context.Context, email string, purpose ChallengePurpose, sendErr error) error {
	if err := service.store.ReleaseResendLock(ctx, email, purpose); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "challenge_resend_lock_release_failed",
			slog.String("purpose", string(purpose)),
			slog.Any("error", err),
		)
	}
	return sendErr
}

/*
Verify checks a presented code against the pending challenge.

The attempt counter is incremented BEFORE comparison, so the ceiling binds
even when the final attempt carries the correct code: the sixth call fails
with TooManyAttempts regardless.

Returns:
  - error: [apperr.TooManyAttempts] when the window is exhausted,
    [apperr.NotFound] when no challenge is pending (expired or never sent),
    [apperr.Unauthorized] when the code does not match, nil on success.
    Success deletes the code and counter; the same code can never verify twice.
*/
func (service *ChallengeService) Verify(ctx context.Context, email string, purpose ChallengePurpose, code string) error {
	// ── 1. Attempt Accounting (before any comparison) ─────────────────────

	attempts, err := service.store.IncrementAttempts(ctx, email, purpose, ChallengeCodeTTL)
	if err != nil {
		return fmt.Errorf("challenge_service_attempts_failed: %w", err)
	}
	if attempts > ChallengeMaxAttempts {
		return apperr.TooManyAttempts("Too many verification attempts. Request a new code.")
	}

	// ── 2. Challenge Lookup ───────────────────────────────────────────────

	stored, found, err := service.store.Code(ctx, email, purpose)
	if err != nil {
		return fmt.Errorf("challenge_service_lookup_failed: %w", err)
	}
	if !found {
		return apperr.NotFound("Challenge")
	}

	// ── 3. Comparison ─────────────────────────────────────────────────────

	if stored != code {
		return apperr.Unauthorized("Invalid code")
	}

	// ── 4. Consume (single success path) ──────────────────────────────────

	if err := service.store.DeleteChallenge(ctx, email, purpose); err != nil {
		return fmt.Errorf("challenge_service_consume_failed: %w", err)
	}

	return nil
}

/*
VerifyAndIssueExchange verifies a reset-purpose code and, on success, issues
the short-lived exchange token that authorizes the final password change.

Splitting "prove you received the code" from "set the new password" bounds
the window during which a stolen code is useful and avoids re-transmitting
the email+code pair to the final step.
*/
func (service *ChallengeService) VerifyAndIssueExchange(ctx context.Context, email, code string) (string, error) {
	if err := service.Verify(ctx, email, PurposeReset, code); err != nil {
		return "", err
	}

	token, err := service.tokens.GenerateOpaqueSecret(ExchangeSecretBytes)
	if err != nil {
		return "", fmt.Errorf("challenge_service_exchange_gen_failed: %w", err)
	}

	if err := service.store.StoreExchangeToken(ctx, token, email, ExchangeTokenTTL); err != nil {
		return "", fmt.Errorf("challenge_service_exchange_store_failed: %w", err)
	}

	return token, nil
}

// ConsumeResetToken redeems an exchange token for its email, exactly once.
// The fetch-and-delete is atomic, so two concurrent redemptions of the same
// token cannot both succeed.
func (service *ChallengeService) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	email, found, err := service.store.ConsumeExchangeToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("challenge_service_exchange_consume_failed: %w", err)
	}
	if !found {
		return "", apperr.Unauthorized("Invalid or expired token")
	}
	return email, nil
}
