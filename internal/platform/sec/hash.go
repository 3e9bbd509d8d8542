// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// Package sec provides the cryptographic primitives for the credential core.
//
// # Architecture
//
// This package isolates security-sensitive code (password hashing, secret
// hashing, random token generation, claim types) from the domain logic. It
// carries no storage or transport dependencies and is injected into the
// application layer via plain function calls and small interfaces.
package sec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain-text password using the bcrypt algorithm.
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
// bcrypt performs the comparison in constant time.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// digestSecret compresses an arbitrary-length secret to a fixed 64-byte hex
// digest. bcrypt only consumes the first 72 bytes of its input, and refresh
// tokens (JWTs) exceed that, so secrets are pre-digested before hashing.
func digestSecret(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}

// HashSecret hashes an opaque secret (refresh token, reset-link token) with
// bcrypt over its SHA-256 digest. Each call salts independently, so the same
// secret never produces the same hash twice, so stores cannot index
// records by hash value and must verify candidates one by one with
// [CheckSecretHash].
func HashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword(digestSecret(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash secret: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckSecretHash verifies an opaque secret against a stored bcrypt hash.
// This is the hash-verify primitive mandated for refresh-token and
// reset-record matching; never substitute string equality.
func CheckSecretHash(secret, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), digestSecret(secret))
	return err == nil
}
