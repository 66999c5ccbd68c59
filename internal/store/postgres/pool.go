// Package postgres backs the three store interfaces spec §3 says are
// *owned* by the Token and OTP engines (RefreshTokenStore, RevokedTokenStore,
// OtpStore) with real Postgres, hand-written against pgx directly.
//
// Grounded on the teacher's internal/storage/storage.go NewPostgres
// (pgxpool.ParseConfig + NewWithConfig + Ping) and db_context.go's
// WithTenantContext pattern; the teacher's own query layer was sqlc-generated
// code not present in the retrieval pack, so queries here are written by hand
// against pgx.Pool/pgx.Row directly rather than regenerated through sqlc.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx connection pool and verifies connectivity, matching
// the teacher's NewPostgres.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}
