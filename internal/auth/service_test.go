// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrogh/aegis/internal/auth"
	"github.com/mkrogh/aegis/internal/platform/apperr"
	"github.com/mkrogh/aegis/internal/platform/cache"
	"github.com/mkrogh/aegis/internal/platform/ratelimit"
	"github.com/mkrogh/aegis/internal/platform/sec"
)

// serviceFixture wires the full application service against in-memory
// repositories and a miniredis-backed challenge store.
type serviceFixture struct {
	service  *auth.Service
	users    *memUserRepo
	refresh  *memRefreshRepo
	notifier *captureNotifier
	redis    *miniredis.Miniredis
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := newMemUserRepo()
	refresh := newMemRefreshRepo()
	resetRecords := newMemResetRepo(users, refresh)
	notifier := &captureNotifier{}

	tokens := auth.NewTokenService(testConfig())
	sessions := auth.NewSessionService(tokens, refresh)
	challenges := auth.NewChallengeService(auth.NewChallengeStore(cache.New(client)), tokens, notifier)
	resets := auth.NewPasswordResetService(users, resetRecords, tokens, notifier, testAppURL)

	service := auth.NewService(users, sessions, challenges, resets, ratelimit.New())

	return &serviceFixture{
		service:  service,
		users:    users,
		refresh:  refresh,
		notifier: notifier,
		redis:    server,
	}
}

// register walks the two-step enrollment for the given address.
func (f *serviceFixture) register(t *testing.T, email, password string) *auth.AuthResult {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.service.RegisterStart(ctx, email))

	result, err := f.service.RegisterVerify(ctx, auth.RegisterInput{
		Email:       email,
		Code:        f.notifier.lastCode(),
		Password:    password,
		DisplayName: "Test User",
		Meta:        testMeta,
	})
	require.NoError(t, err)
	return result
}

/*
TestService_RegisterLoginRefreshLogout walks the primary lifecycle end to
end: enrollment, login, rotation, profile lookup, and logout-everywhere.
*/
func TestService_RegisterLoginRefreshLogout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.register(t, "user@example.com", "correct-horse-1")
	require.NotNil(t, result.User)
	assert.Equal(t, "user@example.com", result.User.Email)
	assert.Empty(t, result.User.PasswordHash)
	assert.Equal(t, sec.RoleUser, result.User.Role)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)

	// Login with the same credentials opens a second session.
	login, err := f.service.Login(ctx, auth.LoginInput{
		Email:    "user@example.com",
		Password: "correct-horse-1",
		Meta:     testMeta,
	})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)
	assert.Equal(t, 2, f.refresh.activeCount(result.User.ID))

	// Rotation issues a new pair and consumes the old token.
	rotated, err := f.service.Refresh(ctx, login.Tokens.RefreshToken, testMeta)
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.RefreshToken, rotated.RefreshToken)

	_, err = f.service.Refresh(ctx, login.Tokens.RefreshToken, testMeta)
	require.Error(t, err)

	// Profile lookup never carries the hash.
	me, err := f.service.Me(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Empty(t, me.PasswordHash)

	// Logout revokes everything; no refresh token survives.
	require.NoError(t, f.service.Logout(ctx, result.User.ID))
	assert.Equal(t, 0, f.refresh.activeCount(result.User.ID))
	_, err = f.service.Refresh(ctx, rotated.RefreshToken, testMeta)
	assert.Error(t, err)
}

/*
TestService_RegisterStartExistingEmail checks the conflict fast path: no
challenge is dispatched for an address that already has an account.
*/
func TestService_RegisterStartExistingEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "user@example.com", "correct-horse-1")
	sent := f.notifier.sendCount()

	err := f.service.RegisterStart(ctx, "user@example.com")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
	assert.Equal(t, sent, f.notifier.sendCount())
}

/*
TestService_LoginUniformFailure verifies that unknown addresses and wrong
passwords are indistinguishable to the caller.
*/
func TestService_LoginUniformFailure(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.register(t, "user@example.com", "correct-horse-1")

	wrongPassword, err1 := f.service.Login(ctx, auth.LoginInput{
		Email: "user@example.com", Password: "wrong-password-1", Meta: testMeta,
	})
	unknownEmail, err2 := f.service.Login(ctx, auth.LoginInput{
		Email: "nobody@example.com", Password: "correct-horse-1", Meta: testMeta,
	})

	assert.Nil(t, wrongPassword)
	assert.Nil(t, unknownEmail)
	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, apperr.As(err1).Code, apperr.As(err2).Code)
	assert.Equal(t, apperr.As(err1).Message, apperr.As(err2).Message)
}

/*
TestService_EmailNormalization checks that addresses differing only by case
and surrounding whitespace resolve to the same account.
*/
func TestService_EmailNormalization(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.register(t, "  User@Example.COM ", "correct-horse-1")
	assert.Equal(t, "user@example.com", result.User.Email)

	login, err := f.service.Login(ctx, auth.LoginInput{
		Email: "user@example.com", Password: "correct-horse-1", Meta: testMeta,
	})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)
}

/*
TestService_AuthRateLimit verifies the per-identifier fixed window on the
auth class: the sixth operation inside the window is throttled.
*/
func TestService_AuthRateLimit(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Five attempts consume the window. Resend locks make the repeats
	// silent no-ops, but each one still counts against the limiter.
	for i := 0; i < 5; i++ {
		require.NoError(t, f.service.RegisterStart(ctx, "limited@example.com"))
	}

	err := f.service.RegisterStart(ctx, "limited@example.com")
	require.Error(t, err)
	assert.Equal(t, "RATE_LIMITED", apperr.As(err).Code)

	// Independent identifiers keep their own windows.
	assert.NoError(t, f.service.RegisterStart(ctx, "other@example.com"))
}

/*
TestService_ResetCodeFlow walks the OTP recovery path end to end: request,
code verification, exchange-token redemption, and session revocation.
*/
func TestService_ResetCodeFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.register(t, "user@example.com", "old-password-1")
	require.Equal(t, 1, f.refresh.activeCount(result.User.ID))

	require.NoError(t, f.service.RequestPasswordReset(ctx, "user@example.com", auth.ResetMethodCode))

	token, err := f.service.VerifyResetCode(ctx, "user@example.com", f.notifier.lastCode())
	require.NoError(t, err)
	require.Len(t, token, auth.ExchangeSecretBytes*2)

	require.NoError(t, f.service.ResetPassword(ctx, token, "new-password-22"))

	// Old sessions are dead, old password is dead, new password works.
	assert.Equal(t, 0, f.refresh.activeCount(result.User.ID))

	_, err = f.service.Login(ctx, auth.LoginInput{
		Email: "user@example.com", Password: "old-password-1", Meta: testMeta,
	})
	require.Error(t, err)

	login, err := f.service.Login(ctx, auth.LoginInput{
		Email: "user@example.com", Password: "new-password-22", Meta: testMeta,
	})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)

	// The exchange token was consumed with the reset.
	err = f.service.ResetPassword(ctx, token, "third-password-33")
	assert.Error(t, err)
}

/*
TestService_ResetLinkFlow walks the link recovery path through the shared
reset endpoint: the 64-char token routes to the durable record flow.
*/
func TestService_ResetLinkFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.register(t, "user@example.com", "old-password-1")

	require.NoError(t, f.service.RequestPasswordReset(ctx, "user@example.com", auth.ResetMethodLink))
	token := linkToken(t, f.notifier)
	require.Len(t, token, auth.ResetLinkSecretBytes*2)

	require.NoError(t, f.service.ResetPassword(ctx, token, "new-password-22"))

	login, err := f.service.Login(ctx, auth.LoginInput{
		Email: "user@example.com", Password: "new-password-22", Meta: testMeta,
	})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)
}

/*
TestService_ResetAntiEnumeration checks that recovery requests for unknown
addresses acknowledge successfully and dispatch nothing, for both methods.
*/
func TestService_ResetAntiEnumeration(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.service.RequestPasswordReset(ctx, "nobody@example.com", auth.ResetMethodCode))
	assert.NoError(t, f.service.RequestPasswordReset(ctx, "nobody@example.com", auth.ResetMethodLink))
	assert.Equal(t, 0, f.notifier.sendCount())
}

/*
TestService_ResetPasswordRejectsMalformedToken checks the length dispatch:
a token matching neither flow's shape fails without touching any store.
*/
func TestService_ResetPasswordRejectsMalformedToken(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.ResetPassword(context.Background(), "deadbeef", "new-password-22")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestService_RefreshRejectsEmptyToken checks the guard on the rotation entry
point.
*/
func TestService_RefreshRejectsEmptyToken(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Refresh(context.Background(), "", testMeta)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestService_RegisterVerifyValidation exercises boundary validation on the
enrollment completion input.
*/
func TestService_RegisterVerifyValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input auth.RegisterInput
	}{
		{"bad_email", auth.RegisterInput{Email: "nope", Code: "123456", Password: "long-enough-1"}},
		{"bad_code", auth.RegisterInput{Email: "a@b.com", Code: "12345", Password: "long-enough-1"}},
		{"short_password", auth.RegisterInput{Email: "a@b.com", Code: "123456", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.RegisterVerify(ctx, tt.input)
			require.Error(t, err)
			assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
		})
	}
}
