// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// PostgreSQL implementations of the durable repositories.
//
// # Error Mapping
//
// Storage-specific errors (pgx.ErrNoRows, unique violations) are mapped to
// domain-friendly [apperr.AppError] types here so nothing above this layer
// ever inspects SQLSTATE codes.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkrogh/aegis/internal/platform/apperr"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique-constraint failures.
const uniqueViolation = "23505"

// PostgresUserRepository implements [UserRepository] using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates the PostgreSQL implementation of [UserRepository].
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new account record into the auth.account table.
func (repository *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	const query = `
		INSERT INTO auth.account (
			id, email, passwordhash, displayname, phone, address, avatarurl, tenantid, role, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.Phone,
		user.Address,
		user.AvatarURL,
		user.TenantID,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == uniqueViolation {
			return apperr.Conflict("Email is already registered")
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	return nil
}

// FindByID retrieves an account by its unique ID. The password hash is
// never selected on this path.
func (repository *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, email, displayname, phone, address, avatarurl, tenantid, role, createdat, updatedat
		FROM auth.account
		WHERE id = $1`

	user := &User{}
	err := repository.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Phone,
		&user.Address,
		&user.AvatarURL,
		&user.TenantID,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err)
	}

	return user, nil
}

// FindByEmail retrieves an account by its normalized email. The password
// hash is never selected on this path.
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT id, email, displayname, phone, address, avatarurl, tenantid, role, createdat, updatedat
		FROM auth.account
		WHERE email = $1`

	user := &User{}
	err := repository.pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Phone,
		&user.Address,
		&user.AvatarURL,
		&user.TenantID,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_email_failed: %w", err)
	}

	return user, nil
}

// FindForLogin retrieves an account WITH its password hash. Credential
// validation is the only legitimate caller.
func (repository *PostgresUserRepository) FindForLogin(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT id, email, passwordhash, displayname, phone, address, avatarurl, tenantid, role, createdat, updatedat
		FROM auth.account
		WHERE email = $1`

	user := &User{}
	err := repository.pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Phone,
		&user.Address,
		&user.AvatarURL,
		&user.TenantID,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_for_login_failed: %w", err)
	}

	return user, nil
}

// UpdatePassword updates only the password hash for a specific account.
func (repository *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, newHash string) error {
	const query = `
		UPDATE auth.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(ctx, query, userID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

// ── Refresh Token Repository ─────────────────────────────────────────────────

// PostgresRefreshTokenRepository implements [RefreshTokenRepository].
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates the PostgreSQL implementation of
// [RefreshTokenRepository].
func NewRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

// Create persists a new record into the auth.refresh_token table.
func (repository *PostgresRefreshTokenRepository) Create(ctx context.Context, record *RefreshToken) error {
	const query = `
		INSERT INTO auth.refresh_token (
			id, userid, tokenhash, useragent, ipaddress, expiresat, revokedat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.TokenHash,
		record.UserAgent,
		record.IPAddress,
		record.ExpiresAt,
		record.RevokedAt,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_token_repo_create_failed: %w", err)
	}

	return nil
}

// ListActive returns the user's non-revoked, non-expired records newest first.
func (repository *PostgresRefreshTokenRepository) ListActive(ctx context.Context, userID string, limit int) ([]*RefreshToken, error) {
	const query = `
		SELECT id, userid, tokenhash, useragent, ipaddress, expiresat, revokedat, createdat
		FROM auth.refresh_token
		WHERE userid = $1 AND revokedat IS NULL AND expiresat > NOW()
		ORDER BY createdat DESC
		LIMIT $2`

	return repository.list(ctx, query, userID, limit, "postgres_token_repo_list_active_failed")
}

// ListRecentlyRevoked returns the user's revoked, not-yet-expired records
// newest first. Used for replay detection during refresh.
func (repository *PostgresRefreshTokenRepository) ListRecentlyRevoked(ctx context.Context, userID string, limit int) ([]*RefreshToken, error) {
	const query = `
		SELECT id, userid, tokenhash, useragent, ipaddress, expiresat, revokedat, createdat
		FROM auth.refresh_token
		WHERE userid = $1 AND revokedat IS NOT NULL AND expiresat > NOW()
		ORDER BY createdat DESC
		LIMIT $2`

	return repository.list(ctx, query, userID, limit, "postgres_token_repo_list_revoked_failed")
}

// list runs one of the bounded record queries and scans the result set.
func (repository *PostgresRefreshTokenRepository) list(ctx context.Context, query, userID string, limit int, failTag string) ([]*RefreshToken, error) {
	rows, err := repository.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", failTag, err)
	}
	defer rows.Close()

	var records []*RefreshToken
	for rows.Next() {
		record := &RefreshToken{}
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.TokenHash,
			&record.UserAgent,
			&record.IPAddress,
			&record.ExpiresAt,
			&record.RevokedAt,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", failTag, err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", failTag, err)
	}

	return records, nil
}

// Revoke marks a record revoked, conditional on it still being active.
//
// The WHERE clause makes the revoke race-safe: when two rotations present
// the same token concurrently, only one UPDATE matches a row, and the loser
// sees affected=false and must fail its refresh.
func (repository *PostgresRefreshTokenRepository) Revoke(ctx context.Context, recordID string) (bool, error) {
	const query = `
		UPDATE auth.refresh_token
		SET revokedat = NOW()
		WHERE id = $1 AND revokedat IS NULL`

	tag, err := repository.pool.Exec(ctx, query, recordID)
	if err != nil {
		return false, fmt.Errorf("postgres_token_repo_revoke_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// RevokeAll marks all of the user's active records revoked.
func (repository *PostgresRefreshTokenRepository) RevokeAll(ctx context.Context, userID string) error {
	const query = `
		UPDATE auth.refresh_token
		SET revokedat = NOW()
		WHERE userid = $1 AND revokedat IS NULL`

	_, err := repository.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("postgres_token_repo_revoke_all_failed: %w", err)
	}

	return nil
}

// DeleteExpired permanently removes records past their expiration instant.
func (repository *PostgresRefreshTokenRepository) DeleteExpired(ctx context.Context) error {
	const query = "DELETE FROM auth.refresh_token WHERE expiresat <= NOW()"
	_, err := repository.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("postgres_token_repo_delete_expired_failed: %w", err)
	}
	return nil
}

// ── Password Reset Repository ────────────────────────────────────────────────

// PostgresResetRepository implements [ResetRecordRepository].
type PostgresResetRepository struct {
	pool *pgxpool.Pool
}

// NewResetRepository creates the PostgreSQL implementation of
// [ResetRecordRepository].
func NewResetRepository(pool *pgxpool.Pool) *PostgresResetRepository {
	return &PostgresResetRepository{pool: pool}
}

// Create persists a new record into the auth.password_reset table.
func (repository *PostgresResetRepository) Create(ctx context.Context, record *PasswordReset) error {
	const query = `
		INSERT INTO auth.password_reset (
			id, userid, tokenhash, expiresat, usedat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.TokenHash,
		record.ExpiresAt,
		record.UsedAt,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_reset_repo_create_failed: %w", err)
	}

	return nil
}

// ListActive returns unused, unexpired records newest first, capped at limit.
func (repository *PostgresResetRepository) ListActive(ctx context.Context, limit int) ([]*PasswordReset, error) {
	const query = `
		SELECT id, userid, tokenhash, expiresat, usedat, createdat
		FROM auth.password_reset
		WHERE usedat IS NULL AND expiresat > NOW()
		ORDER BY createdat DESC
		LIMIT $1`

	rows, err := repository.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_reset_repo_list_active_failed: %w", err)
	}
	defer rows.Close()

	var records []*PasswordReset
	for rows.Next() {
		record := &PasswordReset{}
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.TokenHash,
			&record.ExpiresAt,
			&record.UsedAt,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_reset_repo_list_active_failed: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_reset_repo_list_active_failed: %w", err)
	}

	return records, nil
}

// ConsumeAndResetPassword performs the reset commit group in one transaction:
// mark the record used, replace the password hash, revoke all refresh records.
//
// The mark-used UPDATE is conditional on usedat IS NULL; if a concurrent
// confirmation already consumed the record, this transaction rolls back and
// the caller reports an invalid token.
func (repository *PostgresResetRepository) ConsumeAndResetPassword(ctx context.Context, recordID, userID, newHash string) error {
	transaction, err := repository.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres_reset_repo_tx_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(ctx) }()

	// 1. Consume the record (at most once).
	tag, err := transaction.Exec(ctx,
		`UPDATE auth.password_reset SET usedat = NOW() WHERE id = $1 AND usedat IS NULL`,
		recordID,
	)
	if err != nil {
		return fmt.Errorf("postgres_reset_repo_mark_used_failed: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return apperr.Unauthorized("Invalid or expired token")
	}

	// 2. Replace the password hash.
	if _, err := transaction.Exec(ctx,
		`UPDATE auth.account SET passwordhash = $2, updatedat = NOW() WHERE id = $1`,
		userID, newHash,
	); err != nil {
		return fmt.Errorf("postgres_reset_repo_update_password_failed: %w", err)
	}

	// 3. Revoke every outstanding session.
	if _, err := transaction.Exec(ctx,
		`UPDATE auth.refresh_token SET revokedat = NOW() WHERE userid = $1 AND revokedat IS NULL`,
		userID,
	); err != nil {
		return fmt.Errorf("postgres_reset_repo_revoke_all_failed: %w", err)
	}

	if err := transaction.Commit(ctx); err != nil {
		return fmt.Errorf("postgres_reset_repo_tx_commit_failed: %w", err)
	}

	return nil
}

// DeleteDead removes used and expired reset records.
func (repository *PostgresResetRepository) DeleteDead(ctx context.Context) error {
	const query = "DELETE FROM auth.password_reset WHERE usedat IS NOT NULL OR expiresat <= NOW()"
	_, err := repository.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("postgres_reset_repo_delete_dead_failed: %w", err)
	}
	return nil
}
