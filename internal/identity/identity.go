// Package identity implements the Identity Service (spec §4.4): the
// orchestration surface for registration, login, and admin user
// operations, composing the Credential Service, Token Engine, Risk
// Engine, and UserStore.
//
// Grounded on the teacher's internal/auth/service.go Register/Login
// shape (hash-then-branch registration, password-then-MFA-gate login).
// The decoy-hash timing step in Login is new: the teacher returns
// immediately on "user not found", which is exactly the timing leak spec
// §4.4 step 1 calls out to close.
package identity

import (
	"context"
	"net"
	"net/mail"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/credential"
	"github.com/ssocore/platform/internal/risk"
	"github.com/ssocore/platform/internal/store"
	"github.com/ssocore/platform/internal/tokens"
)

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Service orchestrates registration and login.
type Service struct {
	users   store.UserStore
	hasher  credential.Hasher
	policy  credential.Policy
	tokens  *tokens.Engine
	risk    *risk.Engine
	audit   store.AuditSink

	// decoyHash is compared against on every "user not found" login path so
	// that a missing-identifier lookup costs the same wall-clock time as a
	// genuine password comparison, closing the timing side-channel the
	// teacher's immediate-return left open.
	decoyHash string
}

// Config bundles the Identity Service's collaborators.
type Config struct {
	Users  store.UserStore
	Hasher credential.Hasher
	Policy credential.Policy
	Tokens *tokens.Engine
	Risk   *risk.Engine
	Audit  store.AuditSink
}

func NewService(cfg Config) (*Service, error) {
	decoyHash, err := cfg.Hasher.Hash("decoy-password-for-timing-uniformity-only")
	if err != nil {
		return nil, err
	}
	return &Service{
		users:     cfg.Users,
		hasher:    cfg.Hasher,
		policy:    cfg.Policy,
		tokens:    cfg.Tokens,
		risk:      cfg.Risk,
		audit:     cfg.Audit,
		decoyHash: decoyHash,
	}, nil
}

// RegisterInput is the spec §4.4 CreateUserRequest.
type RegisterInput struct {
	TenantID          uuid.UUID
	IdentifierType    string // email | phone | both
	PrimaryIdentifier string
	Email             string
	Phone             string
	Password          string // empty for passwordless-only accounts
	ProfileData       map[string]any
}

// Register validates identifiers, evaluates the password policy, checks
// uniqueness, and creates the user, spec §4.4.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return nil, apperr.New(apperr.KindValidationError, "email address is not well-formed")
		}
	}
	if in.Phone != "" && !e164Pattern.MatchString(in.Phone) {
		return nil, apperr.New(apperr.KindValidationError, "phone number is not in E.164 format")
	}

	var passwordHash string
	if in.Password != "" {
		eval := credential.Evaluate(s.policy, in.Password)
		if !eval.Valid {
			return nil, apperr.New(apperr.KindPasswordPolicyViolation, "password does not satisfy the configured policy")
		}
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = hash
	}

	user, err := s.users.Create(ctx, store.CreateUserRequest{
		TenantID:          in.TenantID,
		IdentifierType:    in.IdentifierType,
		PrimaryIdentifier: in.PrimaryIdentifier,
		Email:             in.Email,
		Phone:             in.Phone,
		ProfileData:       in.ProfileData,
		Status:            "pending_verification",
	}, passwordHash)
	if err != nil {
		return nil, apperr.AsDatabaseError(err)
	}

	s.emit(ctx, "user.register", user.ID, user.ID, in.TenantID, map[string]any{"identifier_type": in.IdentifierType})
	return user, nil
}

// LoginInput is the spec §4.4 Login input.
type LoginInput struct {
	TenantID   uuid.UUID
	Identifier string
	Password   string
	IP         net.IP
	UserAgent  string
	RiskCtx    risk.Context
}

// LoginResult bundles the minted credentials with a user summary.
type LoginResult struct {
	User         *store.User
	Access       *tokens.Minted
	Refresh      *tokens.IssuedRefresh
	RequiresMFA  bool
	RiskAssess   risk.Assessment
}

// Login implements spec §4.4's full login contract, including the decoy
// hash on a not-found lookup and atomic attempt-counter updates.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.users.FindByIdentifier(ctx, in.TenantID, in.Identifier)
	if err != nil {
		_ = s.hasher.Compare(s.decoyHash, in.Password) // timing uniformity, result discarded
		return nil, apperr.New(apperr.KindInvalidCredentials, "invalid identifier or password")
	}

	if !user.CanAuthenticate() {
		switch {
		case user.Status == "suspended":
			return nil, apperr.New(apperr.KindAccountSuspended, "account is suspended")
		case user.Status == "deleted":
			return nil, apperr.New(apperr.KindAccountDeleted, "account is deleted")
		default:
			return nil, apperr.New(apperr.KindAccountLocked, "account is locked")
		}
	}

	if user.PasswordHash == "" || s.hasher.Compare(user.PasswordHash, in.Password) != nil {
		attempts, incErr := s.users.IncrementFailedAttempts(ctx, user.ID)
		if incErr == nil && credential.ShouldLock(s.policy, attempts) {
			_ = s.users.Update(ctx, lockedCopy(user, credential.LockUntil(s.policy, time.Now())))
		}
		return nil, apperr.New(apperr.KindInvalidCredentials, "invalid identifier or password")
	}

	_ = s.users.ResetFailedAttempts(ctx, user.ID)
	_ = s.users.RecordLogin(ctx, user.ID, in.IP.String())

	assessment := s.risk.Assess(in.RiskCtx)
	if assessment.Level == risk.LevelCritical {
		return nil, apperr.New(apperr.KindAccountLocked, "login denied: critical risk score")
	}

	access, err := s.tokens.Mint(tokens.MintInput{UserID: user.ID, TenantID: user.TenantID})
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(ctx, user.ID, user.TenantID, tokens.DeviceContext{UserAgent: in.UserAgent, IP: in.IP})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "user.login", user.ID, user.ID, user.TenantID, map[string]any{"risk_level": string(assessment.Level)})

	return &LoginResult{
		User: user, Access: access, Refresh: refresh,
		RequiresMFA: user.MFAEnabled, RiskAssess: assessment,
	}, nil
}

func lockedCopy(u *store.User, until time.Time) *store.User {
	cp := *u
	cp.LockedUntil = until
	return &cp
}

// Ban sets a user's status to suspended.
func (s *Service) Ban(ctx context.Context, userID uuid.UUID) error {
	return apperr.AsDatabaseError(s.users.UpdateStatus(ctx, userID, "suspended"))
}

// Activate sets a user's status to active.
func (s *Service) Activate(ctx context.Context, userID uuid.UUID) error {
	return apperr.AsDatabaseError(s.users.UpdateStatus(ctx, userID, "active"))
}

// UpdateStatus sets an arbitrary valid status.
func (s *Service) UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error {
	switch status {
	case "active", "suspended", "deleted", "pending_verification":
	default:
		return apperr.New(apperr.KindValidationError, "unrecognized user status")
	}
	return apperr.AsDatabaseError(s.users.UpdateStatus(ctx, userID, status))
}

// UpdatePassword re-checks policy and history before changing a user's
// password hash, spec §4.4.
func (s *Service) UpdatePassword(ctx context.Context, userID uuid.UUID, newPassword string, priorHashes []string) error {
	eval := credential.Evaluate(s.policy, newPassword)
	if !eval.Valid {
		return apperr.New(apperr.KindPasswordPolicyViolation, "password does not satisfy the configured policy")
	}
	if credential.CheckHistory(s.hasher, newPassword, priorHashes) {
		return apperr.New(apperr.KindPasswordPolicyViolation, "password matches a recently used password")
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return apperr.AsDatabaseError(s.users.UpdatePasswordHash(ctx, userID, hash))
}

// UpdateProfile deep-merges patch into the user's existing ProfileData,
// spec §4.4: new keys overwrite, nested objects recurse, arrays are
// replaced wholesale.
func (s *Service) UpdateProfile(ctx context.Context, user *store.User, patch map[string]any) error {
	merged := deepMerge(user.ProfileData, patch)
	cp := *user
	cp.ProfileData = merged
	return apperr.AsDatabaseError(s.users.Update(ctx, &cp))
}

func deepMerge(base, patch map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if existingMap, ok := out[k].(map[string]any); ok {
			if patchMap, ok := v.(map[string]any); ok {
				out[k] = deepMerge(existingMap, patchMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// LazyRegister implements spec §4.4's Just-in-Time registration: if an
// external authenticator asserts an unknown identifier and the tenant
// permits it, create a passwordless user with the asserted identifier
// marked verified.
func (s *Service) LazyRegister(ctx context.Context, tenantID uuid.UUID, identifierType, identifier string) (user *store.User, isNew bool, err error) {
	existing, lookupErr := s.users.FindByIdentifier(ctx, tenantID, identifier)
	if lookupErr == nil {
		return existing, false, nil
	}

	req := store.CreateUserRequest{
		TenantID: tenantID, IdentifierType: identifierType, PrimaryIdentifier: identifier,
		Status: "active",
	}
	if identifierType == "email" {
		req.Email = identifier
	} else {
		req.Phone = identifier
	}

	created, createErr := s.users.Create(ctx, req, "")
	if createErr != nil {
		return nil, false, apperr.AsDatabaseError(createErr)
	}

	if identifierType == "email" {
		_ = s.users.SetEmailVerified(ctx, created.ID)
	} else {
		_ = s.users.SetPhoneVerified(ctx, created.ID)
	}

	s.emit(ctx, "user.lazy_register", created.ID, created.ID, tenantID, map[string]any{"identifier_type": identifierType})
	return created, true, nil
}

func (s *Service) emit(ctx context.Context, action string, actor, target, tenant uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, store.Event{
		Action: action, ActorID: actor, TargetID: target, TenantID: tenant,
		Metadata: meta, Timestamp: time.Now(),
	})
}
