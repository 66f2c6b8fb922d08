package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo keeps the revocation set in MySQL.  It is used when Redis is
// unavailable.  Rows past expires_at are ignored by lookups and removed by
// the purge_revoked_tokens event.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// IsRevoked reports whether a live revocation exists for the digest.
func (r *TokenRepo) IsRevoked(ctx context.Context, digest string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM revoked_tokens WHERE token_hash=? AND expires_at > UTC_TIMESTAMP() LIMIT 1",
		digest).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Revoke records the digest until exp.  It reports false when a live record
// already exists; the primary key makes the insert the single arbiter.
func (r *TokenRepo) Revoke(ctx context.Context, digest string, exp time.Time) (bool, error) {
	// A stale row for the same digest would block the insert.
	if _, err := r.DB.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE token_hash=? AND expires_at <= UTC_TIMESTAMP()", digest); err != nil {
		return false, err
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO revoked_tokens (token_hash, expires_at) VALUES (?, ?)", digest, exp.UTC())
	var dup *DuplicateKeyError
	if err = translate(err); errors.As(err, &dup) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
