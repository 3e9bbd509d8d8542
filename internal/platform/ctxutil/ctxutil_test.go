// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package ctxutil_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrogh/aegis/internal/platform/ctxutil"
	"github.com/mkrogh/aegis/internal/platform/sec"
)

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	ctx = ctxutil.WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", ctxutil.GetRequestID(ctx))
}

func TestLogger_FallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, ctxutil.GetLogger(ctx))

	scoped := slog.Default().With(slog.String("request_id", "req-123"))
	ctx = ctxutil.WithLogger(ctx, scoped)
	assert.Same(t, scoped, ctxutil.GetLogger(ctx))
}

func TestAuthUser_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ctxutil.GetAuthUser(ctx))

	claims := &sec.AuthClaims{UserID: "user-1", Email: "user@example.com", Role: "user"}
	ctx = ctxutil.WithAuthUser(ctx, claims)
	assert.Same(t, claims, ctxutil.GetAuthUser(ctx))
}
