package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// RefreshTokenStore is an in-memory store.RefreshTokenStore. Revoke is a
// compare-and-swap: it reports an error if the record is already revoked,
// which is what gives tokens.Engine.Rotate its "exactly one concurrent
// rotate wins" guarantee.
type RefreshTokenStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*store.RefreshToken
}

func NewRefreshTokenStore() *RefreshTokenStore {
	return &RefreshTokenStore{byID: make(map[uuid.UUID]*store.RefreshToken)}
}

func (s *RefreshTokenStore) Create(ctx context.Context, t store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.byID[t.ID] = &cp
	return nil
}

func (s *RefreshTokenStore) FindByHash(ctx context.Context, hash string) (*store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byID {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindTokenInvalid, "no refresh token with that hash")
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return apperr.New(apperr.KindTokenInvalid, "no such refresh token")
	}
	if t.RevokedAt != nil {
		return apperr.New(apperr.KindConflict, "refresh token already revoked")
	}
	now := time.Now()
	t.RevokedAt = &now
	t.RevokedReason = reason
	return nil
}

func (s *RefreshTokenStore) RevokeFamily(ctx context.Context, familyID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, t := range s.byID {
		if t.FamilyID == familyID && t.RevokedAt == nil {
			t.RevokedAt = &now
			t.RevokedReason = reason
		}
	}
	return nil
}

func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, t := range s.byID {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			t.RevokedReason = reason
		}
	}
	return nil
}

// blacklistEntry is one row of the access-token blacklist, keyed by jti.
type blacklistEntry struct {
	userID    uuid.UUID
	tenantID  uuid.UUID
	expiresAt time.Time
	reason    string
}

// RevokedTokenStore is an in-memory store.RevokedTokenStore.
type RevokedTokenStore struct {
	mu      sync.Mutex
	byJTI   map[string]blacklistEntry
	// bulk holds, per user (the tenant id is not part of the key), the timestamp at or before which every
	// access token is considered revoked — the sentinel-jti mechanism
	// modeled as a direct index instead of a literal sentinel row, since an
	// in-memory map can do so without changing the interface contract.
	bulk map[uuid.UUID]time.Time
}

func NewRevokedTokenStore() *RevokedTokenStore {
	return &RevokedTokenStore{
		byJTI: make(map[string]blacklistEntry),
		bulk:  make(map[uuid.UUID]time.Time),
	}
}

func (s *RevokedTokenStore) AddToBlacklist(ctx context.Context, jti string, userID, tenantID uuid.UUID, expiresAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byJTI[jti] = blacklistEntry{userID: userID, tenantID: tenantID, expiresAt: expiresAt, reason: reason}
	if strings.HasPrefix(reason, "bulk_user_revocation") {
		s.bulk[userID] = time.Now()
	}
	return nil
}

func (s *RevokedTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byJTI[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, nil
}

func (s *RevokedTokenStore) IsUserRevoked(ctx context.Context, userID, tenantID uuid.UUID, issuedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	markedAt, ok := s.bulk[userID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(markedAt), nil
}
