// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

/*
Package constants provides centralized, immutable values for the entire service.

It defines default timeouts, throttling parameters, and cross-cutting keys that
are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Traffic Guard: Token-bucket parameters and IP tracking TTLs.
  - Security: JWT issuer and refresh-token cookie configuration.
  - Cache Taxonomy: Namespaced Redis key categories for volatile auth state.

Using this package ensures magic strings and magic numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "aegis-api"
	AppVersion = "0.2.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	// Generous enough to cover a bcrypt verification under load.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Traffic Guard (per-IP token bucket, transport level)

const (
	// TrafficGuardRPS is the requests per second allowed per IP.
	TrafficGuardRPS = 100.0

	// TrafficGuardBurst is the maximum burst allowed for the limiter.
	TrafficGuardBurst = 150

	// TrafficGuardCleanupInterval is how often idle IP entries are removed from memory.
	TrafficGuardCleanupInterval = 1 * time.Minute

	// TrafficGuardClientTTL is how long a client must be idle before its entry is deleted.
	TrafficGuardClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "aegis.auth"

	// RefreshTokenCookieName is the name of the cookie that stores the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath is the scoped path for the refresh token cookie.
	RefreshTokenCookiePath = "/api/v1/auth"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderOrigin        = "Origin"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldChecks  = "checks"
)

// # Cache Taxonomy (Redis key categories)

// Volatile auth state is stored under "aegis:<category>:<identifier>".
// Challenge codes and attempt counters for the two OTP purposes share the
// same TTL so that a counter never outlives its code.
const (
	CacheCategoryOtpRegister         = "otp:register"
	CacheCategoryOtpRegisterAttempts = "otp:register:attempts"
	CacheCategoryOtpReset            = "otp:reset"
	CacheCategoryOtpResetAttempts    = "otp:reset:attempts"
	CacheCategoryOtpResendLock       = "otp:lock"
	CacheCategoryResetExchange       = "reset:token"
)

// CacheKeyPrefix namespaces every Aegis key in a shared Redis instance.
const CacheKeyPrefix = "aegis:"
