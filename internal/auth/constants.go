// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth

import "time"

// # OTP Challenge Parameters

const (
	// ChallengeCodeTTL is how long a dispatched code stays verifiable.
	ChallengeCodeTTL = 600 * time.Second

	// ChallengeResendLock is the cooldown during which repeated send calls
	// for the same (email, purpose) are silent no-ops.
	ChallengeResendLock = 60 * time.Second

	// ChallengeMaxAttempts is the verification ceiling per challenge window.
	// The counter is incremented before comparison, so the sixth verify call
	// fails even when it carries the correct code.
	ChallengeMaxAttempts = 5

	// ExchangeTokenTTL bounds the window between a verified reset code and
	// the final password change.
	ExchangeTokenTTL = 600 * time.Second
)

// # Secret Sizes (bytes before hex encoding)

const (
	// ResetLinkSecretBytes sizes the single-use reset-link token.
	ResetLinkSecretBytes = 32

	// ExchangeSecretBytes sizes the reset exchange token.
	ExchangeSecretBytes = 16
)

// # Scan Bounds

// Hash-matching requires loading candidate records and bcrypt-verifying each,
// because per-record salts make value-indexed lookup impossible. These caps
// bound that work; they comfortably exceed any legitimate concurrent
// session or pending-reset count per user.
const (
	// MaxActiveTokenScan caps the records loaded by a refresh-token match.
	MaxActiveTokenScan = 16

	// MaxRevokedTokenScan caps the records consulted for replay detection.
	MaxRevokedTokenScan = 16

	// MaxResetRecordScan caps the records consulted by a reset confirmation.
	MaxResetRecordScan = 32
)

// # Housekeeping

// ExpiredPurgeInterval is how often the background sweep removes expired
// and revoked refresh records and dead reset records.
const ExpiredPurgeInterval = 1 * time.Hour
