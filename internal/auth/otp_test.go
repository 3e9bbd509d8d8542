// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrogh/aegis/internal/auth"
	"github.com/mkrogh/aegis/internal/platform/apperr"
	"github.com/mkrogh/aegis/internal/platform/cache"
)

// newChallengeFixture runs the real Redis-backed challenge store against
// miniredis, so TTL and atomicity semantics match production.
func newChallengeFixture(t *testing.T) (*auth.ChallengeService, *captureNotifier, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := auth.NewChallengeStore(cache.New(client))
	notifier := &captureNotifier{}
	tokens := auth.NewTokenService(testConfig())

	return auth.NewChallengeService(store, tokens, notifier), notifier, server
}

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

/*
TestChallengeService_SendAndVerify covers the happy path: a dispatched code
verifies once, and the consumed challenge leaves no residue.
*/
func TestChallengeService_SendAndVerify(t *testing.T) {
	challenges, notifier, _ := newChallengeFixture(t)
	ctx := context.Background()

	dispatched, err := challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	assert.True(t, dispatched)

	code := notifier.lastCode()
	require.Regexp(t, otpPattern, code)

	require.NoError(t, challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, code))

	// The code is consumed; a second verification finds no challenge.
	err = challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, code)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}

/*
TestChallengeService_WrongCode checks that a mismatched code is rejected but
leaves the challenge pending for further attempts.
*/
func TestChallengeService_WrongCode(t *testing.T) {
	challenges, notifier, _ := newChallengeFixture(t)
	ctx := context.Background()

	_, err := challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	code := notifier.lastCode()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	err = challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, wrong)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)

	// The real code still verifies afterward.
	assert.NoError(t, challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, code))
}

/*
TestChallengeService_AttemptCeiling verifies the hard limit: the counter is
incremented before comparison, so the sixth attempt fails even when it
carries the correct code.
*/
func TestChallengeService_AttemptCeiling(t *testing.T) {
	challenges, notifier, _ := newChallengeFixture(t)
	ctx := context.Background()

	_, err := challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	code := notifier.lastCode()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < auth.ChallengeMaxAttempts; i++ {
		err := challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, wrong)
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	}

	// Sixth attempt with the CORRECT code: still rejected.
	err = challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, code)
	require.Error(t, err)
	assert.Equal(t, "TOO_MANY_ATTEMPTS", apperr.As(err).Code)
}

/*
TestChallengeService_ResendLock checks the cooldown: a second send inside
the lock window is a silent no-op that dispatches nothing and keeps the
original code valid.
*/
func TestChallengeService_ResendLock(t *testing.T) {
	challenges, notifier, server := newChallengeFixture(t)
	ctx := context.Background()

	dispatched, err := challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	require.True(t, dispatched)
	code := notifier.lastCode()

	dispatched, err = challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	assert.False(t, dispatched)
	assert.Equal(t, 1, notifier.sendCount())

	// Original code still verifies.
	require.NoError(t, challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, code))

	// Once the lock expires, a fresh send dispatches a new code.
	server.FastForward(auth.ChallengeResendLock)
	dispatched, err = challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.Equal(t, 2, notifier.sendCount())
}

/*
TestChallengeService_FailedSendReleasesLock checks that a delivery failure
does not leave the caller locked out for the full cooldown: an immediate
retry after the failure dispatches a code.
*/
func TestChallengeService_FailedSendReleasesLock(t *testing.T) {
	challenges, notifier, _ := newChallengeFixture(t)
	ctx := context.Background()

	notifier.failWith = errors.New("smtp relay down")
	dispatched, err := challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.Error(t, err)
	assert.False(t, dispatched)
	assert.Equal(t, 0, notifier.sendCount())

	// The relay recovers; the retry is not blocked by a stale lock.
	notifier.failWith = nil
	dispatched, err = challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	assert.True(t, dispatched)

	code := notifier.lastCode()
	require.NoError(t, challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, code))
}

/*
TestChallengeService_FreshSendResetsWindow checks that a post-lock resend
replaces the code and clears the attempt counter.
*/
func TestChallengeService_FreshSendResetsWindow(t *testing.T) {
	challenges, notifier, server := newChallengeFixture(t)
	ctx := context.Background()

	_, err := challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	firstCode := notifier.lastCode()

	wrong := "000000"
	if wrong == firstCode {
		wrong = "000001"
	}
	for i := 0; i < auth.ChallengeMaxAttempts; i++ {
		_ = challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, wrong)
	}

	server.FastForward(auth.ChallengeResendLock)
	_, err = challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	secondCode := notifier.lastCode()

	// If the exhausted counter had carried over, this would be attempt six
	// and fail with TOO_MANY_ATTEMPTS. The fresh window starts at zero.
	assert.NoError(t, challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, secondCode))
}

/*
TestChallengeService_CodeExpiry checks that a code past its TTL is treated
as never sent.
*/
func TestChallengeService_CodeExpiry(t *testing.T) {
	challenges, notifier, server := newChallengeFixture(t)
	ctx := context.Background()

	_, err := challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	code := notifier.lastCode()

	server.FastForward(auth.ChallengeCodeTTL)

	err = challenges.Verify(ctx, "user@example.com", auth.PurposeRegister, code)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}

/*
TestChallengeService_PurposeIsolation verifies that a registration code can
never satisfy a reset challenge for the same address.
*/
func TestChallengeService_PurposeIsolation(t *testing.T) {
	challenges, notifier, _ := newChallengeFixture(t)
	ctx := context.Background()

	_, err := challenges.Send(ctx, "user@example.com", auth.PurposeRegister)
	require.NoError(t, err)
	code := notifier.lastCode()

	err = challenges.Verify(ctx, "user@example.com", auth.PurposeReset, code)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}

/*
TestChallengeService_ExchangeToken covers the reset exchange: verification
issues a single-use token that redeems exactly once.
*/
func TestChallengeService_ExchangeToken(t *testing.T) {
	challenges, notifier, _ := newChallengeFixture(t)
	ctx := context.Background()

	_, err := challenges.Send(ctx, "user@example.com", auth.PurposeReset)
	require.NoError(t, err)
	code := notifier.lastCode()

	token, err := challenges.VerifyAndIssueExchange(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.Len(t, token, auth.ExchangeSecretBytes*2)

	email, err := challenges.ConsumeResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	// Single use: the second redemption fails.
	_, err = challenges.ConsumeResetToken(ctx, token)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestChallengeService_ExchangeTokenExpiry checks that an unredeemed exchange
token dies with its TTL.
*/
func TestChallengeService_ExchangeTokenExpiry(t *testing.T) {
	challenges, notifier, server := newChallengeFixture(t)
	ctx := context.Background()

	_, err := challenges.Send(ctx, "user@example.com", auth.PurposeReset)
	require.NoError(t, err)

	token, err := challenges.VerifyAndIssueExchange(ctx, "user@example.com", notifier.lastCode())
	require.NoError(t, err)

	server.FastForward(auth.ExchangeTokenTTL)

	_, err = challenges.ConsumeResetToken(ctx, token)
	assert.Error(t, err)
}
