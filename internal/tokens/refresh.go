package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// GenerateSecureToken creates a cryptographically random, base64url opaque
// secret. Grounded on the teacher's internal/auth/recovery.go helper of the
// same name.
func GenerateSecureToken(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", apperr.Wrap(apperr.KindCryptoError, "failed to generate random token", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// hashSecret deterministically hashes an opaque secret for lookup storage,
// matching the teacher's hashToken (SHA-256 hex).
func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IssuedRefresh is what IssueRefresh returns: the plaintext secret (shown
// to the caller exactly once) plus the stored record.
type IssuedRefresh struct {
	Plaintext string
	Record    store.RefreshToken
}

// DeviceContext captures the optional device/UA/IP metadata spec §4.2
// allows attaching to a refresh token.
type DeviceContext struct {
	Device    string
	UserAgent string
	IP        net.IP
}

// IssueRefresh mints a brand-new rotation family, spec §4.2 "Issue refresh
// token".
func (e *Engine) IssueRefresh(ctx context.Context, userID, tenantID uuid.UUID, dc DeviceContext) (*IssuedRefresh, error) {
	secret, err := GenerateSecureToken(32) // 256 bits, well above the 128-bit floor
	if err != nil {
		return nil, err
	}

	record := store.RefreshToken{
		ID:            uuid.New(),
		UserID:        userID,
		TenantID:      tenantID,
		FamilyID:      uuid.New(),
		TokenHash:     hashSecret(secret),
		DeviceContext: dc.Device,
		UserAgent:     dc.UserAgent,
		IP:            dc.IP,
		ExpiresAt:     time.Now().Add(e.refreshTTL),
		CreatedAt:     time.Now(),
	}

	if err := e.refresh.Create(ctx, record); err != nil {
		return nil, apperr.AsDatabaseError(err)
	}

	return &IssuedRefresh{Plaintext: secret, Record: record}, nil
}

// RotateResult bundles the new access+refresh pair returned by a
// successful rotation.
type RotateResult struct {
	Access  *Minted
	Refresh *IssuedRefresh
}

var (
	// ErrBreachDetected distinguishes the family-revocation path from a
	// plain "Revoked" for callers that want to react differently (e.g. step
	// up risk, notify the user).
	ErrBreachDetected = errors.New("rotation breach: refresh token reuse detected, family revoked")
)

// Rotate performs the spec §4.2 "Rotate (refresh)" contract, including
// breach detection on reuse of an already-rotated secret.
//
// Concurrency: the atomicity of "exactly one concurrent rotate succeeds" is
// delegated to RefreshTokenStore.Revoke's compare-and-swap semantics —
// implementations MUST only revoke a record that is still non-revoked and
// report that fact back (see store/memory and store/postgres), so the
// loser of a race observes token.RevokedAt already set and falls into the
// breach branch below on its *next* use, exactly as spec §8's Rotation
// invariant requires.
func (e *Engine) Rotate(ctx context.Context, presentedSecret string, dc DeviceContext, mintAccess func(userID, tenantID uuid.UUID) (*Minted, error)) (*RotateResult, error) {
	hash := hashSecret(presentedSecret)

	record, err := e.refresh.FindByHash(ctx, hash)
	if err != nil {
		return nil, apperr.New(apperr.KindTokenInvalid, "refresh token not recognized")
	}

	if record.RevokedAt != nil {
		// Reuse of a previously-rotated secret: nuke the whole family.
		if revokeErr := e.refresh.RevokeFamily(ctx, record.FamilyID, "rotation_breach"); revokeErr != nil {
			return nil, apperr.AsDatabaseError(revokeErr)
		}
		return nil, apperr.Wrap(apperr.KindTokenRevoked, "refresh token reuse detected", ErrBreachDetected)
	}

	if time.Now().After(record.ExpiresAt) {
		return nil, apperr.New(apperr.KindTokenExpired, "refresh token has expired")
	}

	// Mark the presented record revoked ("rotated"). If a concurrent
	// rotation already flipped it, the store reports that back as an error
	// and this attempt loses the race cleanly.
	if err := e.refresh.Revoke(ctx, record.ID, "rotated"); err != nil {
		return nil, apperr.AsDatabaseError(err)
	}

	newSecret, err := GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}
	newRecord := store.RefreshToken{
		ID:            uuid.New(),
		UserID:        record.UserID,
		TenantID:      record.TenantID,
		FamilyID:      record.FamilyID, // same family
		TokenHash:     hashSecret(newSecret),
		DeviceContext: dc.Device,
		UserAgent:     dc.UserAgent,
		IP:            dc.IP,
		ExpiresAt:     time.Now().Add(e.refreshTTL),
		CreatedAt:     time.Now(),
	}
	if err := e.refresh.Create(ctx, newRecord); err != nil {
		return nil, apperr.AsDatabaseError(err)
	}

	access, err := mintAccess(record.UserID, record.TenantID)
	if err != nil {
		return nil, err
	}

	return &RotateResult{
		Access:  access,
		Refresh: &IssuedRefresh{Plaintext: newSecret, Record: newRecord},
	}, nil
}

// RevokeFamily revokes every non-revoked member of a rotation family, spec
// §4.2 "Revoke family".
func (e *Engine) RevokeFamily(ctx context.Context, familyID uuid.UUID, reason string) error {
	if err := e.refresh.RevokeFamily(ctx, familyID, reason); err != nil {
		return apperr.AsDatabaseError(err)
	}
	return nil
}
