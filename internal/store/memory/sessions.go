package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// SessionStore is an in-memory store.SessionStore.
type SessionStore struct {
	mu       sync.Mutex
	byToken  map[string]*store.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byToken: make(map[string]*store.Session)}
}

func (s *SessionStore) Create(ctx context.Context, sess store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess
	s.byToken[sess.SessionToken] = &cp
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byToken[token]
	if !ok {
		return nil, apperr.New(apperr.KindSessionNotFound, "no such session")
	}
	cp := *sess
	return &cp, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.byToken {
		if sess.UserID == userID {
			delete(s.byToken, token)
		}
	}
	return nil
}
