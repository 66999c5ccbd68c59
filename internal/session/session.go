// Package session implements the Session Service (spec §4.8):
// create/validate/revoke, gated by the Risk Engine.
package session

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/risk"
	"github.com/ssocore/platform/internal/store"
	"github.com/ssocore/platform/internal/tokens"
)

// denyThreshold is the spec §4.8 risk gate: score >= 0.9 denies session
// creation outright.
const denyThreshold = 0.9

// Service creates, validates, and revokes sessions.
type Service struct {
	store      store.SessionStore
	riskEngine *risk.Engine
	ttl        time.Duration
}

func NewService(st store.SessionStore, riskEngine *risk.Engine, ttl time.Duration) *Service {
	return &Service{store: st, riskEngine: riskEngine, ttl: ttl}
}

// CreateInput bundles the context the Risk Engine and the session record
// need.
type CreateInput struct {
	UserID        uuid.UUID
	TenantID      uuid.UUID
	DeviceContext string
	UserAgent     string
	IP            net.IP
	RiskContext   risk.Context
}

// Create consults the Risk Engine and denies session creation when the risk
// score is at or above denyThreshold, spec §4.8.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.Session, *risk.Assessment, error) {
	assessment := s.riskEngine.Assess(in.RiskContext)
	if assessment.Score >= denyThreshold {
		return nil, &assessment, apperr.New(apperr.KindAccountLocked, "session denied: risk score too high")
	}

	secret, err := tokens.GenerateSecureToken(32)
	if err != nil {
		return nil, &assessment, err
	}

	now := time.Now()
	record := store.Session{
		ID:            uuid.New(),
		UserID:        in.UserID,
		TenantID:      in.TenantID,
		SessionToken:  secret,
		DeviceContext: in.DeviceContext,
		UserAgent:     in.UserAgent,
		IP:            in.IP,
		RiskScore:     assessment.Score,
		LastActivity:  now,
		ExpiresAt:     now.Add(s.ttl),
		CreatedAt:     now,
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, &assessment, apperr.AsDatabaseError(err)
	}
	return &record, &assessment, nil
}

// Validate looks up a session by token, deleting and reporting it if
// expired, spec §4.8.
func (s *Service) Validate(ctx context.Context, token string) (*store.Session, error) {
	sess, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, apperr.New(apperr.KindSessionNotFound, "session not found")
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.store.Delete(ctx, token)
		return nil, apperr.New(apperr.KindSessionNotFound, "session has expired")
	}
	return sess, nil
}

// Revoke deletes a single session by token.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, token); err != nil {
		return apperr.AsDatabaseError(err)
	}
	return nil
}

// RevokeAllForUser removes every session belonging to a user, spec §4.8's
// bulk-revocation requirement.
func (s *Service) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		return apperr.AsDatabaseError(err)
	}
	return nil
}
