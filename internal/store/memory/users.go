// Package memory provides in-process reference implementations of every
// collaborator interface in internal/store. These back package tests and
// cmd/api's demo wiring; they are not meant as a production repository
// layer — spec §1 explicitly places repository implementations out of the
// core's scope.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*store.User
}

func NewUserStore() *UserStore {
	return &UserStore{byID: make(map[uuid.UUID]*store.User)}
}

func (s *UserStore) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.TenantID == tenantID && u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindUserNotFound, "no user with that email")
}

func (s *UserStore) FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.TenantID == tenantID && u.Phone == phone && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindUserNotFound, "no user with that phone")
}

func (s *UserStore) FindByIdentifier(ctx context.Context, tenantID uuid.UUID, identifier string) (*store.User, error) {
	if u, err := s.FindByEmail(ctx, tenantID, identifier); err == nil {
		return u, nil
	}
	return s.FindByPhone(ctx, tenantID, identifier)
}

func (s *UserStore) FindByID(ctx context.Context, tenantID, userID uuid.UUID) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok || u.TenantID != tenantID || u.DeletedAt != nil {
		return nil, apperr.New(apperr.KindUserNotFound, "no such user")
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) Create(ctx context.Context, req store.CreateUserRequest, passwordHash string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.byID {
		if u.TenantID != req.TenantID || u.DeletedAt != nil {
			continue
		}
		if req.Email != "" && u.Email == req.Email {
			return nil, apperr.New(apperr.KindConflict, "email already registered")
		}
		if req.Phone != "" && u.Phone == req.Phone {
			return nil, apperr.New(apperr.KindConflict, "phone already registered")
		}
	}

	now := time.Now()
	u := &store.User{
		ID:                uuid.New(),
		TenantID:          req.TenantID,
		IdentifierType:    req.IdentifierType,
		PrimaryIdentifier: req.PrimaryIdentifier,
		Email:             req.Email,
		Phone:             req.Phone,
		PasswordHash:      passwordHash,
		PasswordChangedAt: now,
		ProfileData:       req.ProfileData,
		Status:            req.Status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if u.ProfileData == nil {
		u.ProfileData = map[string]any{}
	}
	s.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *UserStore) Update(ctx context.Context, in *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[in.ID]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such user")
	}
	cp := *in
	cp.UpdatedAt = time.Now()
	_ = existing
	s.byID[in.ID] = &cp
	return nil
}

func (s *UserStore) UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such user")
	}
	u.Status = status
	u.UpdatedAt = time.Now()
	return nil
}

func (s *UserStore) IncrementFailedAttempts(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return 0, apperr.New(apperr.KindUserNotFound, "no such user")
	}
	u.FailedLoginAttempts++
	return u.FailedLoginAttempts, nil
}

func (s *UserStore) ResetFailedAttempts(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such user")
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = time.Time{}
	return nil
}

func (s *UserStore) RecordLogin(ctx context.Context, userID uuid.UUID, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such user")
	}
	u.LastLoginAt = time.Now()
	u.LastLoginIP = ip
	return nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such user")
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = time.Now()
	return nil
}

func (s *UserStore) SetEmailVerified(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such user")
	}
	u.EmailVerified = true
	return nil
}

func (s *UserStore) SetPhoneVerified(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such user")
	}
	u.PhoneVerified = true
	return nil
}

// Seed inserts a user directly (test/demo helper, bypasses Create's
// uniqueness and hashing).
func (s *UserStore) Seed(u store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.byID[u.ID] = &cp
}
