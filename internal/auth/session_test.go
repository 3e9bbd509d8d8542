// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrogh/aegis/internal/auth"
	"github.com/mkrogh/aegis/internal/platform/sec"
)

func newSessionFixture() (*auth.SessionService, *memRefreshRepo) {
	records := newMemRefreshRepo()
	tokens := auth.NewTokenService(testConfig())
	return auth.NewSessionService(tokens, records), records
}

func testUser() *auth.User {
	return &auth.User{
		ID:    "0191c1a0-0000-7000-8000-000000000001",
		Email: "user@example.com",
		Role:  sec.RoleUser,
	}
}

var testMeta = auth.SessionMeta{UserAgent: "go-test", IPAddress: "127.0.0.1"}

/*
TestSessionService_CreateSession checks that a new session yields a pair and
persists exactly one active record whose hash is not the raw token.
*/
func TestSessionService_CreateSession(t *testing.T) {
	sessions, records := newSessionFixture()
	ctx := context.Background()
	user := testUser()

	pair, err := sessions.CreateSession(ctx, user, testMeta)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	active, err := records.ListActive(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)

	record := active[0]
	assert.NotEqual(t, pair.RefreshToken, record.TokenHash)
	assert.True(t, sec.CheckSecretHash(pair.RefreshToken, record.TokenHash))
	assert.Equal(t, "go-test", record.UserAgent)
	assert.Equal(t, "127.0.0.1", record.IPAddress)
}

/*
TestSessionService_RefreshRotation verifies single-use rotation: the old
record is revoked, a new record is created, and the old raw token no longer
refreshes.
*/
func TestSessionService_RefreshRotation(t *testing.T) {
	sessions, records := newSessionFixture()
	ctx := context.Background()
	user := testUser()

	pair, err := sessions.CreateSession(ctx, user, testMeta)
	require.NoError(t, err)

	rotated, err := sessions.RefreshSession(ctx, pair.RefreshToken, testMeta)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.RefreshToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Exactly one record can still authorize a refresh.
	assert.Equal(t, 1, records.activeCount(user.ID))

	// The new token works.
	again, err := sessions.RefreshSession(ctx, rotated.RefreshToken, testMeta)
	require.NoError(t, err)
	require.NotEmpty(t, again.RefreshToken)
}

/*
TestSessionService_ParallelSessionsRotateIndependently covers a user holding
two sessions created back to back. The raw tokens must differ, and rotating
one must kill exactly that token: the consumed token can never match the
sibling session's record and refresh a second time.
*/
func TestSessionService_ParallelSessionsRotateIndependently(t *testing.T) {
	sessions, records := newSessionFixture()
	ctx := context.Background()
	user := testUser()

	first, err := sessions.CreateSession(ctx, user, testMeta)
	require.NoError(t, err)
	second, err := sessions.CreateSession(ctx, user, testMeta)
	require.NoError(t, err)

	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, 2, records.activeCount(user.ID))

	// Rotate the first session once.
	_, err = sessions.RefreshSession(ctx, first.RefreshToken, testMeta)
	require.NoError(t, err)

	// The consumed token is dead even though a sibling session is active.
	_, err = sessions.RefreshSession(ctx, first.RefreshToken, testMeta)
	require.Error(t, err)

	// The replay swept the whole family, second session included.
	assert.Equal(t, 0, records.activeCount(user.ID))
	_, err = sessions.RefreshSession(ctx, second.RefreshToken, testMeta)
	assert.Error(t, err)
}

/*
TestSessionService_ReplayRevokesFamily checks breach containment: presenting
an already-rotated token revokes every session the user holds.
*/
func TestSessionService_ReplayRevokesFamily(t *testing.T) {
	sessions, records := newSessionFixture()
	ctx := context.Background()
	user := testUser()

	pair, err := sessions.CreateSession(ctx, user, testMeta)
	require.NoError(t, err)

	// Legitimate rotation consumes the original token.
	rotated, err := sessions.RefreshSession(ctx, pair.RefreshToken, testMeta)
	require.NoError(t, err)
	require.Equal(t, 1, records.activeCount(user.ID))

	// Replaying the consumed token fails and revokes the live session too.
	_, err = sessions.RefreshSession(ctx, pair.RefreshToken, testMeta)
	require.Error(t, err)
	assert.Equal(t, 0, records.activeCount(user.ID))

	// The previously valid rotated token is now dead as well.
	_, err = sessions.RefreshSession(ctx, rotated.RefreshToken, testMeta)
	assert.Error(t, err)
}

/*
TestSessionService_RefreshRejectsUnknownToken checks the fail-closed paths:
garbage tokens, access tokens, and structurally valid tokens without a
stored record all produce the same uniform failure.
*/
func TestSessionService_RefreshRejectsUnknownToken(t *testing.T) {
	sessions, _ := newSessionFixture()
	ctx := context.Background()

	_, err := sessions.RefreshSession(ctx, "garbage", testMeta)
	assert.Error(t, err)

	// A signed refresh token with no persisted record must not refresh.
	tokens := auth.NewTokenService(testConfig())
	_, orphan, err := tokens.SignTokenPair("user-x", "x@example.com", "user")
	require.NoError(t, err)

	_, err = sessions.RefreshSession(ctx, orphan, testMeta)
	assert.Error(t, err)
}

/*
TestSessionService_TerminateSession checks logout-everywhere: all active
records are revoked, and terminating an empty session set is a no-op.
*/
func TestSessionService_TerminateSession(t *testing.T) {
	sessions, records := newSessionFixture()
	ctx := context.Background()
	user := testUser()

	first, err := sessions.CreateSession(ctx, user, testMeta)
	require.NoError(t, err)
	_, err = sessions.CreateSession(ctx, user, testMeta)
	require.NoError(t, err)
	require.Equal(t, 2, records.activeCount(user.ID))

	require.NoError(t, sessions.TerminateSession(ctx, user.ID))
	assert.Equal(t, 0, records.activeCount(user.ID))

	_, err = sessions.RefreshSession(ctx, first.RefreshToken, testMeta)
	assert.Error(t, err)

	// Idempotent on an empty set.
	assert.NoError(t, sessions.TerminateSession(ctx, user.ID))
}
