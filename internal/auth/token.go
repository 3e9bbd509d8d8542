// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrogh/aegis/internal/platform/apperr"
	"github.com/mkrogh/aegis/internal/platform/config"
	"github.com/mkrogh/aegis/internal/platform/constants"
	"github.com/mkrogh/aegis/internal/platform/sec"
	"github.com/mkrogh/aegis/pkg/uuidv7"
)

// TokenService signs and verifies the two JWT classes and computes expiry
// instants for the durable stores.
//
// # Key Separation
//
// Access and refresh tokens are signed with distinct secrets. Verification
// always names the expected class, so an access token presented on the
// refresh path (or vice versa) fails signature checking outright.
//
// # Fail-Closed Contract
//
// Any malformed, expired, or mis-keyed token produces an error and a nil
// claims pointer. No partial payload is ever returned.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	resetTTL      time.Duration
}

// NewTokenService constructs a [TokenService] from validated configuration.
// Config.Load has already rejected short, equal, or malformed secrets and
// non-positive lifetimes, so no validation is repeated here.
func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		resetTTL:      cfg.ResetTokenTTL,
	}
}

/*
SignTokenPair mints a fresh access/refresh token pair for the subject.

Parameters:
  - userID: Subject account ID, becomes both `sub` and the uid claim.
  - email: Normalized account email.
  - role: Authorization level embedded for the middleware.

Returns:
  - string: The signed access token (short-lived).
  - string: The signed refresh token (long-lived, distinct secret).
  - error: Signing failures only.
*/
func (service *TokenService) SignTokenPair(userID, email, role string) (string, string, error) {
	accessToken, err := service.sign(userID, email, role, service.accessSecret, service.accessTTL)
	if err != nil {
		return "", "", fmt.Errorf("token_service_access_sign_failed: %w", err)
	}

	refreshToken, err := service.sign(userID, email, role, service.refreshSecret, service.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("token_service_refresh_sign_failed: %w", err)
	}

	return accessToken, refreshToken, nil
}

// sign builds and signs one HS256 token.
//
// The jti claim makes every minted token unique even when two tokens for the
// same subject are signed within the same second (iat/exp have second
// granularity). Refresh rotation depends on this: each refresh record must
// be backed by a distinct raw secret, or consuming one record would leave a
// byte-identical sibling still refreshable.
func (service *TokenService) sign(userID, email, role string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuidv7.New(),
			Issuer:    constants.AuthIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyAccessToken validates an access token and returns its claims.
// Satisfies the middleware TokenVerifier contract.
func (service *TokenService) VerifyAccessToken(tokenStr string) (*sec.AuthClaims, error) {
	return service.verify(tokenStr, service.accessSecret)
}

// VerifyRefreshToken validates a refresh token's signature and lifetime.
//
// A valid signature alone does not authorize a refresh; the session service
// must still match the raw token against a stored active record.
func (service *TokenService) VerifyRefreshToken(tokenStr string) (*sec.AuthClaims, error) {
	return service.verify(tokenStr, service.refreshSecret)
}

// verify parses and validates one token class, failing closed.
func (service *TokenService) verify(tokenStr string, secret []byte) (*sec.AuthClaims, error) {
	claims := &sec.AuthClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(constants.AuthIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	return claims, nil
}

// # Expiry Instants

// RefreshExpiry returns the expiration instant for a refresh record minted now.
func (service *TokenService) RefreshExpiry() time.Time {
	return time.Now().Add(service.refreshTTL)
}

// ResetExpiry returns the expiration instant for a reset record minted now.
func (service *TokenService) ResetExpiry() time.Time {
	return time.Now().Add(service.resetTTL)
}

// GenerateOpaqueSecret returns byteLength random bytes hex-encoded.
// Used for reset-link tokens and reset exchange tokens.
func (service *TokenService) GenerateOpaqueSecret(byteLength int) (string, error) {
	return sec.GenerateSecureToken(byteLength)
}
