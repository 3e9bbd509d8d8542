// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// Package ctxutil stores and retrieves the per-request values Aegis carries
// through [context.Context]: the correlation ID, the request-scoped logger,
// and the verified auth claims.
//
// Keys use an unexported type, so no other package can collide with or
// overwrite these entries.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/mkrogh/aegis/internal/platform/sec"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	loggerKey
	authUserKey
)

// WithRequestID attaches the correlation ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the correlation ID, or "" when none was attached.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger attaches a request-scoped logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLogger returns the request-scoped logger, falling back to
// [slog.Default] so callers never need a nil check.
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithAuthUser attaches verified auth claims to the context.
func WithAuthUser(ctx context.Context, claims *sec.AuthClaims) context.Context {
	return context.WithValue(ctx, authUserKey, claims)
}

// GetAuthUser returns the verified claims, or nil for anonymous requests.
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	claims, _ := ctx.Value(authUserKey).(*sec.AuthClaims)
	return claims
}
