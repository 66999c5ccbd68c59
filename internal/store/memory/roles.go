package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// RoleStore is an in-memory store.RoleStore.
type RoleStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*store.Role
}

func NewRoleStore() *RoleStore {
	return &RoleStore{byID: make(map[uuid.UUID]*store.Role)}
}

func (s *RoleStore) Create(ctx context.Context, r store.Role) (*store.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := r
	s.byID[r.ID] = &cp
	out := cp
	return &out, nil
}

func (s *RoleStore) Update(ctx context.Context, r store.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; !ok {
		return apperr.New(apperr.KindUserNotFound, "no such role")
	}
	cp := r
	s.byID[r.ID] = &cp
	return nil
}

func (s *RoleStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such role")
	}
	if r.IsSystemRole {
		return apperr.New(apperr.KindValidationError, "system roles cannot be deleted")
	}
	delete(s.byID, id)
	return nil
}

func (s *RoleStore) FindByID(ctx context.Context, id uuid.UUID) (*store.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, apperr.New(apperr.KindUserNotFound, "no such role")
	}
	cp := *r
	return &cp, nil
}

func (s *RoleStore) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]store.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Role
	for _, r := range s.byID {
		if r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *RoleStore) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*store.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.byID {
		if r.TenantID == tenantID && r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindUserNotFound, "no role with that name")
}

func (s *RoleStore) AssignPermission(ctx context.Context, roleID uuid.UUID, permission string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[roleID]
	if !ok {
		return apperr.New(apperr.KindUserNotFound, "no such role")
	}
	for _, p := range r.Permissions {
		if p == permission {
			return nil
		}
	}
	r.Permissions = append(r.Permissions, permission)
	return nil
}
