package postgres

import (
	"context"
	"errors"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// RefreshTokenStore is a Postgres-backed store.RefreshTokenStore.
type RefreshTokenStore struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenStore(pool *pgxpool.Pool) *RefreshTokenStore {
	return &RefreshTokenStore{pool: pool}
}

func (s *RefreshTokenStore) Create(ctx context.Context, t store.RefreshToken) error {
	const q = `
		INSERT INTO refresh_tokens
			(id, user_id, tenant_id, family_id, token_hash, device_context, user_agent, ip, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, q,
		t.ID, t.UserID, t.TenantID, t.FamilyID, t.TokenHash, t.DeviceContext, t.UserAgent,
		ipOrNil(t.IP), t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseError, "failed to insert refresh token", err)
	}
	return nil
}

func (s *RefreshTokenStore) FindByHash(ctx context.Context, hash string) (*store.RefreshToken, error) {
	const q = `
		SELECT id, user_id, tenant_id, family_id, token_hash, device_context, user_agent, ip,
		       expires_at, revoked_at, revoked_reason, created_at
		FROM refresh_tokens WHERE token_hash = $1`
	row := s.pool.QueryRow(ctx, q, hash)
	return scanRefreshToken(row)
}

// Revoke is the compare-and-swap spec §4.2's rotation race depends on: the
// UPDATE only affects a row that is not yet revoked, so a concurrent second
// caller sees rowsAffected == 0 and reports Conflict.
func (s *RefreshTokenStore) Revoke(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `
		UPDATE refresh_tokens SET revoked_at = now(), revoked_reason = $2
		WHERE id = $1 AND revoked_at IS NULL`
	tag, err := s.pool.Exec(ctx, q, id, reason)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseError, "failed to revoke refresh token", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.New(apperr.KindTokenInvalid, "no such refresh token")
		}
		return apperr.New(apperr.KindConflict, "refresh token already revoked")
	}
	return nil
}

func (s *RefreshTokenStore) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(apperr.KindDatabaseError, "failed to check refresh token existence", err)
	}
	return exists, nil
}

func (s *RefreshTokenStore) RevokeFamily(ctx context.Context, familyID uuid.UUID, reason string) error {
	const q = `UPDATE refresh_tokens SET revoked_at = now(), revoked_reason = $2 WHERE family_id = $1 AND revoked_at IS NULL`
	if _, err := s.pool.Exec(ctx, q, familyID, reason); err != nil {
		return apperr.Wrap(apperr.KindDatabaseError, "failed to revoke refresh token family", err)
	}
	return nil
}

func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string) error {
	const q = `UPDATE refresh_tokens SET revoked_at = now(), revoked_reason = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := s.pool.Exec(ctx, q, userID, reason); err != nil {
		return apperr.Wrap(apperr.KindDatabaseError, "failed to revoke refresh tokens for user", err)
	}
	return nil
}

func scanRefreshToken(row pgx.Row) (*store.RefreshToken, error) {
	var t store.RefreshToken
	var ip, revokedReason *string
	if err := row.Scan(&t.ID, &t.UserID, &t.TenantID, &t.FamilyID, &t.TokenHash, &t.DeviceContext,
		&t.UserAgent, &ip, &t.ExpiresAt, &t.RevokedAt, &revokedReason, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindTokenInvalid, "no refresh token with that hash")
		}
		return nil, apperr.Wrap(apperr.KindDatabaseError, "failed to scan refresh token", err)
	}
	if ip != nil {
		t.IP = net.ParseIP(*ip)
	}
	if revokedReason != nil {
		t.RevokedReason = *revokedReason
	}
	return &t, nil
}

func ipOrNil(ip net.IP) *string {
	if ip == nil {
		return nil
	}
	s := ip.String()
	return &s
}
