// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/mkrogh/aegis/internal/platform/cache"
	"github.com/mkrogh/aegis/internal/platform/constants"
)

// RedisChallengeStore implements [ChallengeStore] on the namespaced cache.
//
// # Key Layout
//
//	aegis:otp:<purpose>:<email>           challenge code
//	aegis:otp:<purpose>:attempts:<email>  attempt counter
//	aegis:otp:lock:<purpose>:<email>      resend lock
//	aegis:reset:token:<token>             exchange token -> email
//
// Codes and counters share one TTL, so a counter never outlives its code.
type RedisChallengeStore struct {
	cache *cache.Redis
}

// NewChallengeStore wraps the shared cache adapter.
func NewChallengeStore(redisCache *cache.Redis) *RedisChallengeStore {
	return &RedisChallengeStore{cache: redisCache}
}

// codeCategory maps a purpose to its code key category.
func codeCategory(purpose ChallengePurpose) string {
	if purpose == PurposeReset {
		return constants.CacheCategoryOtpReset
	}
	return constants.CacheCategoryOtpRegister
}

// attemptsCategory maps a purpose to its attempt-counter key category.
func attemptsCategory(purpose ChallengePurpose) string {
	if purpose == PurposeReset {
		return constants.CacheCategoryOtpResetAttempts
	}
	return constants.CacheCategoryOtpRegisterAttempts
}

// StoreCode saves the challenge code, replacing any previous one.
func (s *RedisChallengeStore) StoreCode(ctx context.Context, email string, purpose ChallengePurpose, code string, ttl time.Duration) error {
	return s.cache.Set(ctx, codeCategory(purpose), email, code, ttl)
}

// Code returns the stored challenge code for (email, purpose).
func (s *RedisChallengeStore) Code(ctx context.Context, email string, purpose ChallengePurpose) (string, bool, error) {
	return s.cache.Get(ctx, codeCategory(purpose), email)
}

// DeleteChallenge removes the code and its attempt counter together.
func (s *RedisChallengeStore) DeleteChallenge(ctx context.Context, email string, purpose ChallengePurpose) error {
	if err := s.cache.Delete(ctx, codeCategory(purpose), email); err != nil {
		return err
	}
	return s.cache.Delete(ctx, attemptsCategory(purpose), email)
}

// IncrementAttempts bumps the attempt counter, binding the TTL on first use.
func (s *RedisChallengeStore) IncrementAttempts(ctx context.Context, email string, purpose ChallengePurpose, ttl time.Duration) (int64, error) {
	return s.cache.Increment(ctx, attemptsCategory(purpose), email, ttl)
}

// AcquireResendLock claims the resend lock for (email, purpose).
// Returns false when a lock is already held.
func (s *RedisChallengeStore) AcquireResendLock(ctx context.Context, email string, purpose ChallengePurpose, ttl time.Duration) (bool, error) {
	identifier := string(purpose) + ":" + email
	return s.cache.SetIfAbsent(ctx, constants.CacheCategoryOtpResendLock, identifier, "1", ttl)
}

// ReleaseResendLock drops the resend lock before its TTL elapses.
func (s *RedisChallengeStore) ReleaseResendLock(ctx context.Context, email string, purpose ChallengePurpose) error {
	identifier := string(purpose) + ":" + email
	return s.cache.Delete(ctx, constants.CacheCategoryOtpResendLock, identifier)
}

// StoreExchangeToken maps an opaque reset exchange token to its email.
func (s *RedisChallengeStore) StoreExchangeToken(ctx context.Context, token, email string, ttl time.Duration) error {
	return s.cache.Set(ctx, constants.CacheCategoryResetExchange, token, email, ttl)
}

// ConsumeExchangeToken atomically fetches and deletes the token mapping.
func (s *RedisChallengeStore) ConsumeExchangeToken(ctx context.Context, token string) (string, bool, error) {
	return s.cache.GetDel(ctx, constants.CacheCategoryResetExchange, token)
}
