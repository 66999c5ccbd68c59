package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssocore/platform/internal/apperr"
)

// RevokedTokenStore is a Postgres-backed store.RevokedTokenStore. A single
// row per jti backs single-token revocation; a separate bulk table backs
// IsUserRevoked so a whole-user revocation doesn't require blacklisting
// every outstanding jti individually, mirroring the memory store's split
// between byJTI and bulk maps.
type RevokedTokenStore struct {
	pool *pgxpool.Pool
}

func NewRevokedTokenStore(pool *pgxpool.Pool) *RevokedTokenStore {
	return &RevokedTokenStore{pool: pool}
}

func (s *RevokedTokenStore) AddToBlacklist(ctx context.Context, jti string, userID, tenantID uuid.UUID, expiresAt time.Time, reason string) error {
	const q = `
		INSERT INTO token_blacklist (jti, user_id, tenant_id, expires_at, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at, reason = EXCLUDED.reason`
	if _, err := s.pool.Exec(ctx, q, jti, userID, tenantID, expiresAt, reason); err != nil {
		return apperr.Wrap(apperr.KindDatabaseError, "failed to blacklist token", err)
	}

	if strings.HasPrefix(reason, "bulk_user_revocation") {
		const bulkQ = `
			INSERT INTO user_revocations (user_id, tenant_id, revoked_at)
			VALUES ($1, $2, now())
			ON CONFLICT (user_id, tenant_id) DO UPDATE SET revoked_at = now()`
		if _, err := s.pool.Exec(ctx, bulkQ, userID, tenantID); err != nil {
			return apperr.Wrap(apperr.KindDatabaseError, "failed to record bulk revocation", err)
		}
	}
	return nil
}

func (s *RevokedTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	const q = `SELECT 1 FROM token_blacklist WHERE jti = $1 AND expires_at > now()`
	var dummy int
	err := s.pool.QueryRow(ctx, q, jti).Scan(&dummy)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindDatabaseError, "failed to check token blacklist", err)
	}
	return true, nil
}

func (s *RevokedTokenStore) IsUserRevoked(ctx context.Context, userID, tenantID uuid.UUID, issuedAt time.Time) (bool, error) {
	const q = `SELECT revoked_at FROM user_revocations WHERE user_id = $1 AND tenant_id = $2`
	var revokedAt time.Time
	err := s.pool.QueryRow(ctx, q, userID, tenantID).Scan(&revokedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindDatabaseError, "failed to check bulk user revocation", err)
	}
	return !issuedAt.After(revokedAt), nil
}
