package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// OtpStore is an in-memory store.OtpStore.
type OtpStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*store.OtpSession
}

func NewOtpStore() *OtpStore {
	return &OtpStore{sessions: make(map[uuid.UUID]*store.OtpSession)}
}

func (s *OtpStore) CreateSession(ctx context.Context, sess store.OtpSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *OtpStore) FindByID(ctx context.Context, id uuid.UUID) (*store.OtpSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.KindInvalidOtp, "no such otp session")
	}
	cp := *sess
	return &cp, nil
}

func (s *OtpStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return 0, apperr.New(apperr.KindInvalidOtp, "no such otp session")
	}
	sess.Attempts++
	return sess.Attempts, nil
}

func (s *OtpStore) MarkVerified(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return apperr.New(apperr.KindInvalidOtp, "no such otp session")
	}
	now := time.Now()
	sess.VerifiedAt = &now
	return nil
}

func (s *OtpStore) CountRecentRequests(ctx context.Context, tenantID uuid.UUID, identifier string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sess := range s.sessions {
		if sess.TenantID == tenantID && sess.Identifier == identifier && sess.SentAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *OtpStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) || sess.VerifiedAt != nil {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
