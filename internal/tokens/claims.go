package tokens

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the access-token claim set, spec §3/§6.
type Claims struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	Permissions []string  `json:"permissions"`
	Roles       []string  `json:"roles"`
	Scope       string    `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// MintInput is the caller-supplied subset of an access token's claims.
type MintInput struct {
	UserID      uuid.UUID
	TenantID    uuid.UUID
	Permissions []string
	Roles       []string
	Scope       string
}

// Minted is what Mint returns to the caller, per spec §4.2.
type Minted struct {
	Token     string
	TokenType string // "Bearer"
	ExpiresIn int64  // seconds
	JTI       string
	ExpiresAt int64 // unix seconds, for access-token blacklist bookkeeping (Engine.Revoke)
}
