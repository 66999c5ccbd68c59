// Package tokens implements the Token Engine (spec §4.2): minting,
// validation, introspection, rotation, and revocation of access and
// refresh tokens.
//
// Grounded on the teacher's internal/auth/token.go (RS256 signing via
// golang-jwt, explicit signing-method check in validation) and
// internal/auth/service.go/session_service.go's refresh-rotation and
// reuse-detection shape.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/keys"
	"github.com/ssocore/platform/internal/store"
)

// Engine is the Token Engine. It owns no storage directly for access
// tokens (they are self-describing and validated against the blacklist);
// it owns the refresh-token lifecycle through the RefreshTokenStore.
type Engine struct {
	keyManager *keys.Manager
	blacklist  store.RevokedTokenStore
	refresh    store.RefreshTokenStore

	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Config bundles the Engine's tunables, mirroring spec §6's token.* surface.
type Config struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewEngine constructs a Token Engine. AccessTTL > 60 minutes is rejected
// per spec §4.2.
func NewEngine(km *keys.Manager, blacklist store.RevokedTokenStore, refresh store.RefreshTokenStore, cfg Config) (*Engine, error) {
	if cfg.AccessTTL <= 0 || cfg.AccessTTL > 60*time.Minute {
		return nil, apperr.New(apperr.KindConfigurationError, "token access TTL must be in (0, 60m]")
	}
	if cfg.RefreshTTL <= 0 || cfg.RefreshTTL > 30*24*time.Hour {
		return nil, apperr.New(apperr.KindConfigurationError, "token refresh TTL must be in (0, 30d]")
	}
	return &Engine{
		keyManager: km,
		blacklist:  blacklist,
		refresh:    refresh,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// Time claims are encoded with millisecond precision (golang-jwt's default
// is whole seconds), so a token minted after a bulk user revocation carries
// an iat later than the revocation time even within the same second.
func init() { jwt.TimePrecision = time.Millisecond }

// Mint issues a signed access token, spec §4.2.
func (e *Engine) Mint(in MintInput) (*Minted, error) {
	now := time.Now()
	exp := now.Add(e.accessTTL)
	jti := uuid.New().String()

	claims := Claims{
		TenantID:    in.TenantID,
		Permissions: in.Permissions,
		Roles:       in.Roles,
		Scope:       in.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   in.UserID.String(),
			Issuer:    e.issuer,
			Audience:  jwt.ClaimStrings{e.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}

	handle := e.keyManager.EncodingKey()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = handle.KeyID()

	signed, err := token.SignedString(handle.PrivateKey())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCryptoError, "failed to sign access token", err)
	}

	return &Minted{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresIn: int64(e.accessTTL.Seconds()),
		JTI:       jti,
		ExpiresAt: exp.Unix(),
	}, nil
}

// Validate decodes and verifies an access token, per spec §4.2's full
// validation contract: algorithm pinning, signature, nbf/exp, iss/aud, and
// blacklist lookup.
func (e *Engine) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		// Defence against algorithm substitution: reject any header that
		// doesn't declare the fixed configured algorithm, even if a
		// signature would otherwise verify (e.g. "none", HS256-with-the-
		// public-key-as-secret).
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errUnsupportedAlgorithm
		}
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, errUnsupportedAlgorithm
		}
		kid, _ := t.Header["kid"].(string)
		pub, ok := e.keyManager.VerifyingKeyFor(kid)
		if !ok {
			return nil, errUnsupportedAlgorithm
		}
		return pub, nil
	}, jwt.WithIssuer(e.issuer), jwt.WithAudience(e.audience))

	if err != nil {
		if errors.Is(err, errUnsupportedAlgorithm) {
			return nil, apperr.New(apperr.KindTokenUnsupportedAlgorithm, "unsupported signing algorithm")
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.KindTokenExpired, "token has expired")
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, apperr.New(apperr.KindTokenMalformedSignature, "signature verification failed")
		}
		return nil, apperr.New(apperr.KindTokenInvalid, "token is invalid")
	}
	if !parsed.Valid {
		return nil, apperr.New(apperr.KindTokenInvalid, "token is invalid")
	}

	revoked, err := e.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.AsDatabaseError(err)
	}
	if revoked {
		return nil, apperr.New(apperr.KindTokenRevoked, "token has been revoked")
	}

	if subj, parseErr := uuid.Parse(claims.Subject); parseErr == nil && claims.IssuedAt != nil {
		bulkRevoked, err := e.blacklist.IsUserRevoked(ctx, subj, claims.TenantID, claims.IssuedAt.Time)
		if err != nil {
			return nil, apperr.AsDatabaseError(err)
		}
		if bulkRevoked {
			return nil, apperr.New(apperr.KindTokenRevoked, "token has been revoked")
		}
	}

	return claims, nil
}

var errUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

// Introspection is the spec §4.2 Introspect response shape.
type Introspection struct {
	Active bool
	Claims *Claims
}

// Introspect never returns an error for malformed input — per spec §4.2 it
// reports active=false instead. Per the Open Question resolution in
// DESIGN.md, a valid signature IS required for an introspection response of
// active=true: an unauthenticated "active" response would be a worse
// failure mode than an over-strict one.
func (e *Engine) Introspect(ctx context.Context, tokenString string) Introspection {
	claims, err := e.Validate(ctx, tokenString)
	if err != nil {
		return Introspection{Active: false}
	}
	return Introspection{Active: true, Claims: claims}
}

// Revoke adds jti to the blacklist, spec §4.2's "Revoke access token".
func (e *Engine) Revoke(ctx context.Context, jti string, userID, tenantID uuid.UUID, originalExpiresAt *time.Time) error {
	expiresAt := time.Now().Add(e.accessTTL)
	if originalExpiresAt != nil {
		expiresAt = *originalExpiresAt
	}
	if err := e.blacklist.AddToBlacklist(ctx, jti, userID, tenantID, expiresAt, "revoked"); err != nil {
		return apperr.AsDatabaseError(err)
	}
	return nil
}

// sentinelJTI marks bulk user-revocation blacklist rows, spec §3.
const sentinelJTI = "00000000-0000-0000-0000-000000000000"

// RevokeAllForUser blacklists a sentinel record for the user and revokes
// every refresh-token family they hold, spec §4.2 "Revoke family / user".
func (e *Engine) RevokeAllForUser(ctx context.Context, userID, tenantID uuid.UUID, reason string) error {
	expiresAt := time.Now().Add(e.accessTTL)
	if err := e.blacklist.AddToBlacklist(ctx, sentinelJTI, userID, tenantID, expiresAt, fmt.Sprintf("bulk_user_revocation:%s", reason)); err != nil {
		return apperr.AsDatabaseError(err)
	}
	if err := e.refresh.RevokeAllForUser(ctx, userID, reason); err != nil {
		return apperr.AsDatabaseError(err)
	}
	return nil
}
