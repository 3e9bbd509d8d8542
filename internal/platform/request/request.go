// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// Package request extracts data from incoming HTTP requests: JSON bodies
// and the identity the authentication middleware attached.
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/mkrogh/aegis/internal/platform/apperr"
	"github.com/mkrogh/aegis/internal/platform/ctxutil"
	"github.com/mkrogh/aegis/internal/platform/sec"
	"github.com/mkrogh/aegis/internal/platform/validate"
)

// DecodeJSON decodes the request body into target. Malformed bodies map to
// [validate.ErrInvalidJSON] so every endpoint rejects them identically.
func DecodeJSON(request *http.Request, target any) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

// Claims returns the verified auth claims, or nil for anonymous requests.
func Claims(request *http.Request) *sec.AuthClaims {
	return ctxutil.GetAuthUser(request.Context())
}

// RequiredClaims returns the verified auth claims, or [apperr.Unauthorized]
// when the request carries no identity.
func RequiredClaims(request *http.Request) (*sec.AuthClaims, error) {
	claims := ctxutil.GetAuthUser(request.Context())
	if claims == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return claims, nil
}

// RequiredUserID returns the authenticated caller's account ID.
func RequiredUserID(request *http.Request) (string, error) {
	claims, err := RequiredClaims(request)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
