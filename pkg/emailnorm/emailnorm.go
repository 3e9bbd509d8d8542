// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// Package emailnorm canonicalizes email addresses for storage and lookup.
//
// # Why normalize?
//
// Account emails are unique case-insensitively. "User@Example.COM" and
// "user@example.com" must resolve to the same account, both at registration
// (uniqueness check) and at login/OTP lookup (cache keys). Every boundary
// that accepts an email funnels it through [Normalize] before it touches a
// repository or cache key.
package emailnorm

import (
	"strings"

	"golang.org/x/text/cases"
)

// folder performs Unicode case folding, which is stricter than ASCII
// lowercasing for internationalized addresses.
var folder = cases.Fold()

// Normalize trims surrounding whitespace and case-folds the address.
//
// It performs no syntactic validation; callers validate format separately.
func Normalize(email string) string {
	return folder.String(strings.TrimSpace(email))
}

// Equal reports whether two addresses normalize to the same identity.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
