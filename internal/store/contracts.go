// Package store declares the collaborator interfaces the core requires
// from the outside world, per spec §6. The core never prescribes how these
// are implemented — internal/store/memory and internal/store/postgres are
// reference implementations, not the contract itself.
package store

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
)

// User is the spec §3 User entity.
type User struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	IdentifierType     string // email | phone | both
	PrimaryIdentifier  string // email | phone
	Email              string
	EmailVerified      bool
	Phone              string
	PhoneVerified      bool
	PasswordHash       string // empty for passwordless-only accounts
	PasswordChangedAt  time.Time
	FailedLoginAttempts int
	LockedUntil        time.Time
	LastLoginAt        time.Time
	LastLoginIP        string
	MFAEnabled         bool
	RiskScore          float64
	ProfileData        map[string]any
	Preferences        map[string]any
	Status             string // active | suspended | deleted | pending_verification
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// CanAuthenticate implements spec §3's invariant:
// can_authenticate ⇔ status=active ∧ locked_until ∈ (past|null).
func (u User) CanAuthenticate() bool {
	if u.Status != "active" {
		return false
	}
	return u.LockedUntil.IsZero() || u.LockedUntil.Before(time.Now())
}

// CreateUserRequest is the input to UserStore.Create.
type CreateUserRequest struct {
	TenantID          uuid.UUID
	IdentifierType    string
	PrimaryIdentifier string
	Email             string
	Phone             string
	ProfileData       map[string]any
	Status            string
}

// UserStore is the spec §6 UserStore collaborator interface.
type UserStore interface {
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error)
	FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*User, error)
	FindByIdentifier(ctx context.Context, tenantID uuid.UUID, identifier string) (*User, error)
	FindByID(ctx context.Context, tenantID, userID uuid.UUID) (*User, error)
	Create(ctx context.Context, req CreateUserRequest, passwordHash string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error
	IncrementFailedAttempts(ctx context.Context, userID uuid.UUID) (int, error)
	ResetFailedAttempts(ctx context.Context, userID uuid.UUID) error
	RecordLogin(ctx context.Context, userID uuid.UUID, ip string) error
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
	SetPhoneVerified(ctx context.Context, userID uuid.UUID) error
}

// RefreshToken is the spec §3 Refresh Token entity.
type RefreshToken struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	TenantID       uuid.UUID
	FamilyID       uuid.UUID
	TokenHash      string
	DeviceContext  string
	UserAgent      string
	IP             net.IP
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	RevokedReason  string
	CreatedAt      time.Time
}

// RefreshTokenStore is the spec §6 RefreshTokenStore collaborator interface.
type RefreshTokenStore interface {
	Create(ctx context.Context, t RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID, reason string) error
	RevokeFamily(ctx context.Context, familyID uuid.UUID, reason string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string) error
}

// RevokedTokenStore is the spec §6 RevokedTokenStore (access-token blacklist).
//
// IsUserRevoked is an extension beyond the spec's literal two-method
// surface: spec §3 says a bulk-user revocation record carries a sentinel
// jti, which only works end-to-end if validation can ask "is there a
// not-yet-expired bulk marker for this user" independently of the jti being
// checked. Without it, "revoke family/user... MUST cause all of that
// user's existing sessions [tokens] to be invalidated" (spec §4.2) would be
// unimplementable against a jti-keyed lookup alone.
type RevokedTokenStore interface {
	AddToBlacklist(ctx context.Context, jti string, userID, tenantID uuid.UUID, expiresAt time.Time, reason string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	IsUserRevoked(ctx context.Context, userID, tenantID uuid.UUID, issuedAt time.Time) (bool, error)
}

// OtpSession is the spec §3 OTP Session entity.
type OtpSession struct {
	ID             uuid.UUID
	UserID         *uuid.UUID
	TenantID       uuid.UUID
	IdentifierType string // email | phone
	Identifier     string
	OtpHash        string
	DeliveryMethod string // email | sms
	Purpose        string // registration | login | email_verification | phone_verification | password_reset
	Attempts       int
	MaxAttempts    int
	SentAt         time.Time
	ExpiresAt      time.Time
	VerifiedAt     *time.Time
}

// OtpStore is the spec §6 OtpStore collaborator interface.
type OtpStore interface {
	CreateSession(ctx context.Context, s OtpSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*OtpSession, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	CountRecentRequests(ctx context.Context, tenantID uuid.UUID, identifier string, since time.Time) (int, error)
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

// Session is the spec §3 Session entity.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	TenantID     uuid.UUID
	SessionToken string
	DeviceContext string
	UserAgent    string
	IP           net.IP
	RiskScore    float64
	LastActivity time.Time
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// SessionStore is the spec §6 SessionStore collaborator interface.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// Role is the spec §3 Role entity.
type Role struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	ParentRoleID *uuid.UUID
	IsSystemRole bool
	Permissions  []string
	Constraints  map[string]any
	Scope        string // global | tenant | organization
}

// RoleStore is the single, reconciled spec §6/§4.10 RoleStore interface.
type RoleStore interface {
	Create(ctx context.Context, r Role) (*Role, error)
	Update(ctx context.Context, r Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*Role, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]Role, error)
	FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*Role, error)
	AssignPermission(ctx context.Context, roleID uuid.UUID, permission string) error
}

// Event is what AuditSink.Log receives.
type Event struct {
	Action    string
	ActorID   uuid.UUID
	TargetID  uuid.UUID
	TenantID  uuid.UUID
	SessionID uuid.UUID
	Metadata  map[string]any
	Timestamp time.Time
}

// AuditSink is the spec §6 fire-and-forget audit contract: the core must
// not block awaiting audit persistence.
type AuditSink interface {
	Log(ctx context.Context, event Event)
}

// SmsSender is the spec §4.5/§6 SMS delivery collaborator.
type SmsSender interface {
	SendOTP(ctx context.Context, to, otp string) (deliveryID string, err error)
}

// EmailSender is the spec §4.5/§6 email delivery collaborator.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (deliveryID string, err error)
}
