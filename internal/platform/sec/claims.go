// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package sec

import "github.com/golang-jwt/jwt/v5"

// AuthClaims represents the payload embedded inside a signed token.
//
// # Why custom claims?
//
// By embedding the user ID and email directly inside the JWT, the
// authentication middleware can reconstruct the active user context
// WITHOUT querying the database on every single API request.
//
// The same claim shape is used for access and refresh tokens; the two are
// distinguished only by signing secret and lifetime, which is why
// verification always goes through the token service and never through a
// generic parse.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID string `json:"uid"`
	Email  string `json:"eml"`
	Role   string `json:"rol,omitempty"`
}
