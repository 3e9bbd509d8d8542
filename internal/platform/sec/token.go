// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// otpModulus bounds OTP codes to six decimal digits.
var otpModulus = big.NewInt(1_000_000)

// GenerateSecureToken returns byteLength random bytes hex-encoded.
//
// The output is an opaque bearer secret (refresh-exchange tokens, reset-link
// tokens). The encoded string is twice byteLength characters long.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// GenerateOTPCode returns a 6-digit numeric code, uniformly distributed over
// 000000–999999 and left-padded with zeros.
//
// crypto/rand.Int performs rejection sampling, so no code is more likely
// than any other (a naive modulo over a byte stream would bias low codes).
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpModulus)
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate OTP code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
