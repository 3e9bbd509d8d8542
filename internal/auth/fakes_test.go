// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

package auth_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mkrogh/aegis/internal/auth"
	"github.com/mkrogh/aegis/internal/platform/apperr"
)

// memUserRepo is an in-memory UserRepository for tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*auth.User // keyed by ID
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*auth.User)}
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return user.Sanitized(), nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user.Sanitized(), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (r *memUserRepo) FindForLogin(ctx context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (r *memUserRepo) Create(ctx context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return apperr.Conflict("Email is already registered")
		}
	}
	clone := *user
	clone.CreatedAt = time.Now()
	clone.UpdatedAt = clone.CreatedAt
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, userID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.PasswordHash = newHash
	user.UpdatedAt = time.Now()
	return nil
}

// passwordHash exposes the stored hash for assertions.
func (r *memUserRepo) passwordHash(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		return user.PasswordHash
	}
	return ""
}

// memRefreshRepo is an in-memory RefreshTokenRepository for tests.
type memRefreshRepo struct {
	mu      sync.Mutex
	records map[string]*auth.RefreshToken
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{records: make(map[string]*auth.RefreshToken)}
}

func (r *memRefreshRepo) Create(ctx context.Context, record *auth.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	clone.CreatedAt = time.Now()
	r.records[record.ID] = &clone
	return nil
}

func (r *memRefreshRepo) list(userID string, limit int, revoked bool) []*auth.RefreshToken {
	now := time.Now()
	matches := make([]*auth.RefreshToken, 0)
	for _, record := range r.records {
		if record.UserID != userID || !now.Before(record.ExpiresAt) {
			continue
		}
		if (record.RevokedAt != nil) != revoked {
			continue
		}
		clone := *record
		matches = append(matches, &clone)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func (r *memRefreshRepo) ListActive(ctx context.Context, userID string, limit int) ([]*auth.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(userID, limit, false), nil
}

func (r *memRefreshRepo) ListRecentlyRevoked(ctx context.Context, userID string, limit int) ([]*auth.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(userID, limit, true), nil
}

func (r *memRefreshRepo) Revoke(ctx context.Context, recordID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[recordID]
	if !ok || record.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	record.RevokedAt = &now
	return true, nil
}

func (r *memRefreshRepo) RevokeAll(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, record := range r.records {
		if record.UserID == userID && record.RevokedAt == nil {
			record.RevokedAt = &now
		}
	}
	return nil
}

func (r *memRefreshRepo) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, record := range r.records {
		if !now.Before(record.ExpiresAt) {
			delete(r.records, id)
		}
	}
	return nil
}

// activeCount reports how many records can still authorize a refresh.
func (r *memRefreshRepo) activeCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list(userID, len(r.records)+1, false))
}

// memResetRepo is an in-memory ResetRecordRepository. The consume operation
// mirrors the transactional store: mark used, update password, revoke all.
type memResetRepo struct {
	mu      sync.Mutex
	records map[string]*auth.PasswordReset
	users   *memUserRepo
	refresh *memRefreshRepo
}

func newMemResetRepo(users *memUserRepo, refresh *memRefreshRepo) *memResetRepo {
	return &memResetRepo{
		records: make(map[string]*auth.PasswordReset),
		users:   users,
		refresh: refresh,
	}
}

func (r *memResetRepo) Create(ctx context.Context, record *auth.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	clone.CreatedAt = time.Now()
	r.records[record.ID] = &clone
	return nil
}

func (r *memResetRepo) ListActive(ctx context.Context, limit int) ([]*auth.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	matches := make([]*auth.PasswordReset, 0)
	for _, record := range r.records {
		if record.UsedAt != nil || !now.Before(record.ExpiresAt) {
			continue
		}
		clone := *record
		matches = append(matches, &clone)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *memResetRepo) ConsumeAndResetPassword(ctx context.Context, recordID, userID, newHash string) error {
	r.mu.Lock()
	record, ok := r.records[recordID]
	if !ok || record.UsedAt != nil {
		r.mu.Unlock()
		return apperr.Unauthorized("Invalid or expired token")
	}
	now := time.Now()
	record.UsedAt = &now
	r.mu.Unlock()

	if err := r.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return err
	}
	return r.refresh.RevokeAll(ctx, userID)
}

func (r *memResetRepo) DeleteDead(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, record := range r.records {
		if record.UsedAt != nil || !now.Before(record.ExpiresAt) {
			delete(r.records, id)
		}
	}
	return nil
}

// captureNotifier records outbound mail instead of sending it.
type captureNotifier struct {
	mu        sync.Mutex
	codes     []string
	resetURLs []string
	failWith  error
}

func (n *captureNotifier) SendChallengeCode(ctx context.Context, email, code, purpose string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.codes = append(n.codes, code)
	return nil
}

func (n *captureNotifier) SendPasswordResetLink(ctx context.Context, email, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.resetURLs = append(n.resetURLs, url)
	return nil
}

func (n *captureNotifier) lastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		return ""
	}
	return n.codes[len(n.codes)-1]
}

func (n *captureNotifier) sendCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.codes) + len(n.resetURLs)
}
