// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// Service orchestration for the credential lifecycle use cases.
//
// # Architecture
//
// The Service type is the application layer: it validates input, normalizes
// emails, applies per-identifier throttling, and sequences the token,
// session, challenge, and reset services. It knows nothing about HTTP or SQL.

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkrogh/aegis/internal/platform/apperr"
	"github.com/mkrogh/aegis/internal/platform/ctxutil"
	"github.com/mkrogh/aegis/internal/platform/ratelimit"
	"github.com/mkrogh/aegis/internal/platform/sec"
	"github.com/mkrogh/aegis/internal/platform/validate"
	"github.com/mkrogh/aegis/pkg/emailnorm"
	"github.com/mkrogh/aegis/pkg/uuidv7"
)

// Rate limiter operation classes.
const (
	limitClassAuth  = "auth"
	limitClassReset = "reset"
)

// retryAfterSeconds is the advisory backoff reported on throttled requests.
const retryAfterSeconds = 60

// ResetMethod selects which recovery flow a reset request starts.
type ResetMethod string

const (
	// ResetMethodCode emails a 6-digit challenge code (default).
	ResetMethodCode ResetMethod = "code"

	// ResetMethodLink emails a single-use reset link.
	ResetMethodLink ResetMethod = "link"
)

// Service implements the credential and session lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, challenge,
// or rotation logic must be reviewed by the security team.
type Service struct {
	users      UserRepository
	sessions   *SessionService
	challenges *ChallengeService
	resets     *PasswordResetService
	limiter    *ratelimit.Limiter
}

// NewService constructs a [Service] with its collaborator services.
func NewService(
	users UserRepository,
	sessions *SessionService,
	challenges *ChallengeService,
	resets *PasswordResetService,
	limiter *ratelimit.Limiter,
) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		challenges: challenges,
		resets:     resets,
		limiter:    limiter,
	}
}

// AuthResult is the product of a completed registration or login.
type AuthResult struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// # Registration

/*
RegisterStart begins OTP-gated enrollment for an email address.

Returns [apperr.Conflict] when the address is already registered: unlike
password recovery, signup legitimately reveals address existence because the
caller is the address owner completing their own enrollment.
*/
func (service *Service) RegisterStart(ctx context.Context, email string) error {
	v := &validate.Validator{}
	if err := v.Required("email", email).Email("email", email).Err(); err != nil {
		return err
	}
	email = emailnorm.Normalize(email)

	if !service.limiter.Check(email, limitClassAuth, ratelimit.AuthPolicy) {
		return apperr.RateLimited(retryAfterSeconds)
	}

	// Existing account: fail fast instead of sending a useless code.
	if _, err := service.users.FindByEmail(ctx, email); err == nil {
		return apperr.Conflict("Email is already registered")
	}

	if _, err := service.challenges.Send(ctx, email, PurposeRegister); err != nil {
		return apperr.Unavailable("Email delivery", err)
	}

	return nil
}

// RegisterInput holds the data required to complete enrollment.
type RegisterInput struct {
	Email       string
	Code        string
	Password    string
	DisplayName string
	Phone       string
	Meta        SessionMeta
}

/*
RegisterVerify completes enrollment: verifies the challenge code, creates
the account, and opens the first session.

The challenge is consumed before the account exists; if account creation
fails afterwards the caller must restart from [Service.RegisterStart].
That ordering is safe: a consumed code authorizes nothing on its own.
*/
func (service *Service) RegisterVerify(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	// ── 1. Boundary Validation ────────────────────────────────────────────

	v := &validate.Validator{}
	err := v.
		Required("email", input.Email).
		Email("email", input.Email).
		OTPCode("code", input.Code).
		Required("password", input.Password).
		Password("password", input.Password).
		MaxLen("display_name", input.DisplayName, 100).
		Err()
	if err != nil {
		return nil, err
	}
	email := emailnorm.Normalize(input.Email)

	if !service.limiter.Check(email, limitClassAuth, ratelimit.AuthPolicy) {
		return nil, apperr.RateLimited(retryAfterSeconds)
	}

	// ── 2. Challenge Verification ─────────────────────────────────────────

	if err := service.challenges.Verify(ctx, email, PurposeRegister, input.Code); err != nil {
		return nil, err
	}

	// ── 3. Account Creation ───────────────────────────────────────────────

	passwordHash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &User{
		ID:           uuidv7.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		Phone:        input.Phone,
		Role:         sec.RoleUser,
	}

	if err := service.users.Create(ctx, user); err != nil {
		return nil, err
	}

	// ── 4. First Session ──────────────────────────────────────────────────

	tokens, err := service.sessions.CreateSession(ctx, user, input.Meta)
	if err != nil {
		// The account exists but no tokens were issued; retrying login is
		// safe and idempotent.
		return nil, apperr.Internal(err)
	}

	return &AuthResult{User: user.Sanitized(), Tokens: *tokens}, nil
}

// # Login / Logout

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
	Meta     SessionMeta
}

/*
Login validates credentials and opens a session.

Every failure mode (unknown address, wrong password) surfaces the same
InvalidCredentials signal, preventing account enumeration.
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	v := &validate.Validator{}
	if err := v.Required("email", input.Email).Required("password", input.Password).Err(); err != nil {
		return nil, err
	}
	email := emailnorm.Normalize(input.Email)

	if !service.limiter.Check(email, limitClassAuth, ratelimit.AuthPolicy) {
		return nil, apperr.RateLimited(retryAfterSeconds)
	}

	// ── 1. Credential Validation ──────────────────────────────────────────

	user, err := service.validateCredentials(ctx, email, input.Password)
	if err != nil {
		return nil, err
	}

	// ── 2. Session Issuance ───────────────────────────────────────────────

	tokens, err := service.sessions.CreateSession(ctx, user, input.Meta)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &AuthResult{User: user.Sanitized(), Tokens: *tokens}, nil
}

// validateCredentials is the internal-only lookup that touches the password
// hash. Both failure modes collapse into one uniform error.
func (service *Service) validateCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := service.users.FindForLogin(ctx, email)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	if !sec.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	return user, nil
}

// Refresh rotates a refresh token for a new pair.
func (service *Service) Refresh(ctx context.Context, rawToken string, meta SessionMeta) (*TokenPair, error) {
	if rawToken == "" {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}
	return service.sessions.RefreshSession(ctx, rawToken, meta)
}

// Logout revokes every active session for the user (logout-everywhere).
func (service *Service) Logout(ctx context.Context, userID string) error {
	return service.sessions.TerminateSession(ctx, userID)
}

// Me returns the caller's profile, password hash cleared.
func (service *Service) Me(ctx context.Context, userID string) (*User, error) {
	return service.users.FindByID(ctx, userID)
}

// # Password Recovery

/*
RequestPasswordReset starts recovery for an address via the chosen method.

Anti-enumeration: the call acknowledges identically whether or not the
address is registered, and collaborator failures on the silent path are
logged, never surfaced.
*/
func (service *Service) RequestPasswordReset(ctx context.Context, email string, method ResetMethod) error {
	v := &validate.Validator{}
	if err := v.Required("email", email).Email("email", email).Err(); err != nil {
		return err
	}
	email = emailnorm.Normalize(email)

	if !service.limiter.Check(email, limitClassReset, ratelimit.ResetPolicy) {
		return apperr.RateLimited(retryAfterSeconds)
	}

	if method == ResetMethodLink {
		return service.resets.RequestReset(ctx, email)
	}

	// Code method: dispatch only for registered addresses, but acknowledge
	// uniformly either way.
	if _, err := service.users.FindByEmail(ctx, email); err != nil {
		return nil
	}

	if _, err := service.challenges.Send(ctx, email, PurposeReset); err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "reset_code_dispatch_failed",
			slog.Any("error", err),
		)
	}

	return nil
}

// VerifyResetCode verifies a reset challenge code and returns the exchange
// token authorizing the final password change.
func (service *Service) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	v := &validate.Validator{}
	if err := v.Required("email", email).Email("email", email).OTPCode("code", code).Err(); err != nil {
		return "", err
	}
	email = emailnorm.Normalize(email)

	if !service.limiter.Check(email, limitClassReset, ratelimit.ResetPolicy) {
		return "", apperr.RateLimited(retryAfterSeconds)
	}

	return service.challenges.VerifyAndIssueExchange(ctx, email, code)
}

/*
ResetPassword completes recovery with either token kind.

The two flows mint tokens of different sizes, so the raw length selects the
path: exchange tokens (from code verification) redeem against the cache;
link tokens hash-match against durable reset records. Unknown shapes fail
validation without touching either store.
*/
func (service *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	v := &validate.Validator{}
	if err := v.Required("token", rawToken).Required("password", newPassword).Password("password", newPassword).Err(); err != nil {
		return err
	}

	switch len(rawToken) {
	case ExchangeSecretBytes * 2:
		return service.resetWithExchangeToken(ctx, rawToken, newPassword)
	case ResetLinkSecretBytes * 2:
		return service.resets.ResetConfirm(ctx, rawToken, newPassword)
	default:
		return apperr.Unauthorized("Invalid or expired token")
	}
}

// resetWithExchangeToken redeems a cache-resident exchange token and commits
// the new password. The token is consumed atomically first; the subsequent
// password update is idempotently repeatable via a fresh recovery flow if a
// crash intervenes.
func (service *Service) resetWithExchangeToken(ctx context.Context, rawToken, newPassword string) error {
	email, err := service.challenges.ConsumeResetToken(ctx, rawToken)
	if err != nil {
		return err
	}

	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		return apperr.Unauthorized("Invalid or expired token")
	}

	newHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := service.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		return apperr.Internal(err)
	}

	// A successful reset invalidates every outstanding session.
	if err := service.sessions.TerminateSession(ctx, user.ID); err != nil {
		return apperr.Internal(err)
	}

	return nil
}

// # Housekeeping

// StartHousekeeping launches the periodic sweep that purges expired refresh
// records and dead reset records. It stops when the context is cancelled.
func (service *Service) StartHousekeeping(ctx context.Context, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(ExpiredPurgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := service.sessions.PurgeExpired(ctx); err != nil {
					logger.Error("refresh_token_purge_failed", slog.Any("error", err))
				}
				if err := service.resets.PurgeDead(ctx); err != nil {
					logger.Error("reset_record_purge_failed", slog.Any("error", err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
