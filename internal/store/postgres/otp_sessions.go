package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// OtpStore is a Postgres-backed store.OtpStore.
type OtpStore struct {
	pool *pgxpool.Pool
}

func NewOtpStore(pool *pgxpool.Pool) *OtpStore {
	return &OtpStore{pool: pool}
}

func (s *OtpStore) CreateSession(ctx context.Context, sess store.OtpSession) error {
	const q = `
		INSERT INTO otp_sessions
			(id, user_id, tenant_id, identifier_type, identifier, otp_hash, delivery_method,
			 purpose, attempts, max_attempts, sent_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.pool.Exec(ctx, q,
		sess.ID, sess.UserID, sess.TenantID, sess.IdentifierType, sess.Identifier, sess.OtpHash,
		sess.DeliveryMethod, sess.Purpose, sess.Attempts, sess.MaxAttempts, sess.SentAt, sess.ExpiresAt)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseError, "failed to insert otp session", err)
	}
	return nil
}

func (s *OtpStore) FindByID(ctx context.Context, id uuid.UUID) (*store.OtpSession, error) {
	const q = `
		SELECT id, user_id, tenant_id, identifier_type, identifier, otp_hash, delivery_method,
		       purpose, attempts, max_attempts, sent_at, expires_at, verified_at
		FROM otp_sessions WHERE id = $1`
	var sess store.OtpSession
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&sess.ID, &sess.UserID, &sess.TenantID, &sess.IdentifierType, &sess.Identifier, &sess.OtpHash,
		&sess.DeliveryMethod, &sess.Purpose, &sess.Attempts, &sess.MaxAttempts, &sess.SentAt,
		&sess.ExpiresAt, &sess.VerifiedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.KindInvalidOtp, "no such otp session")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseError, "failed to scan otp session", err)
	}
	return &sess, nil
}

func (s *OtpStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	const q = `UPDATE otp_sessions SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`
	var attempts int
	err := s.pool.QueryRow(ctx, q, id).Scan(&attempts)
	if err == pgx.ErrNoRows {
		return 0, apperr.New(apperr.KindInvalidOtp, "no such otp session")
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseError, "failed to increment otp attempts", err)
	}
	return attempts, nil
}

func (s *OtpStore) MarkVerified(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE otp_sessions SET verified_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseError, "failed to mark otp session verified", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindInvalidOtp, "no such otp session")
	}
	return nil
}

func (s *OtpStore) CountRecentRequests(ctx context.Context, tenantID uuid.UUID, identifier string, since time.Time) (int, error) {
	const q = `
		SELECT count(*) FROM otp_sessions
		WHERE tenant_id = $1 AND identifier = $2 AND sent_at > $3`
	var count int
	if err := s.pool.QueryRow(ctx, q, tenantID, identifier, since).Scan(&count); err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseError, "failed to count recent otp requests", err)
	}
	return count, nil
}

func (s *OtpStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	const q = `DELETE FROM otp_sessions WHERE expires_at < $1 OR verified_at IS NOT NULL`
	tag, err := s.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseError, "failed to clean up otp sessions", err)
	}
	return int(tag.RowsAffected()), nil
}
