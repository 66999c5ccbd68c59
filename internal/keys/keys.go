// Package keys implements the Key Manager (spec §4.1): custody of the
// active RSA signing key pair, JWKS publication, and rotation with a grace
// window during which both the old and new verification keys validate.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ssocore/platform/internal/apperr"
)

// SigningHandle exposes the active private key to a JWT library. Token
// signing itself is delegated to golang-jwt (internal/tokens), so the
// handle's job is custody and key-id tagging, not the signing math.
type SigningHandle interface {
	KeyID() string
	PrivateKey() *rsa.PrivateKey
}

// VerifyingHandle verifies a signature against a specific key generation.
type VerifyingHandle interface {
	KeyID() string
	PublicKey() *rsa.PublicKey
}

// JWK is a single entry of a JSON Web Key Set, RFC 7517.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

type generation struct {
	kid        string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	retireAt   time.Time // zero for the current generation; set once rotated out
}

func (g *generation) KeyID() string               { return g.kid }
func (g *generation) PrivateKey() *rsa.PrivateKey { return g.privateKey }
func (g *generation) PublicKey() *rsa.PublicKey   { return g.publicKey }

// Manager is the process-wide singleton holding the signing key generations.
// Per spec §9 "Global state", it carries explicit init/rotate lifecycle
// methods rather than being constructed on demand.
type Manager struct {
	mu         sync.RWMutex
	current    *generation
	previous   *generation // retained only within its grace window
	graceWindow time.Duration
}

// NewManager loads the initial key pair from a PEM-encoded RSA private key,
// mirroring the teacher's NewJWTProvider parsing (PKCS1, falling back to
// PKCS8). graceWindow must be >= the access-token TTL (spec §4.1).
func NewManager(privateKeyPEM string, graceWindow time.Duration) (*Manager, error) {
	priv, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigurationError, "failed to load signing key", err)
	}
	return &Manager{
		current: &generation{
			kid:        newKeyID(),
			privateKey: priv,
			publicKey:  &priv.PublicKey,
		},
		graceWindow: graceWindow,
	}, nil
}

func parsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unparseable private key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA private key")
	}
	return priv, nil
}

func newKeyID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "sig-" + base64.RawURLEncoding.EncodeToString(b)
}

// EncodingKey returns the handle used to sign new tokens.
func (m *Manager) EncodingKey() SigningHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// DecodingKey returns the current verification handle.
func (m *Manager) DecodingKey() VerifyingHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// VerifyingKeyFor resolves a verification key by kid, honoring the rotation
// grace window: a previous generation remains acceptable until it retires.
func (m *Manager) VerifyingKeyFor(kid string) (*rsa.PublicKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current != nil && m.current.kid == kid {
		return m.current.publicKey, true
	}
	if m.previous != nil && m.previous.kid == kid {
		if time.Now().Before(m.previous.retireAt) {
			return m.previous.publicKey, true
		}
		return nil, false
	}
	return nil, false
}

// JWKS returns the JSON Web Key Set for every still-acceptable key
// generation (current, plus previous while inside its grace window).
func (m *Manager) JWKS() JWKS {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := JWKS{}
	out.Keys = append(out.Keys, toJWK(m.current))
	if m.previous != nil && time.Now().Before(m.previous.retireAt) {
		out.Keys = append(out.Keys, toJWK(m.previous))
	}
	return out
}

func toJWK(g *generation) JWK {
	e := big.NewInt(int64(g.publicKey.E)).Bytes()
	n := g.publicKey.N.Bytes()
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: g.kid,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(n),
		E:   base64.RawURLEncoding.EncodeToString(e),
	}
}

// Rotate atomically swaps in a freshly generated key pair. The outgoing
// generation remains verification-acceptable for the manager's grace
// window so in-flight tokens signed under it are not truncated.
func (m *Manager) Rotate() error {
	newPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return apperr.Wrap(apperr.KindCryptoError, "key generation failed during rotation", err)
	}
	next := &generation{
		kid:        newKeyID(),
		privateKey: newPriv,
		publicKey:  &newPriv.PublicKey,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	outgoing := m.current
	outgoing.retireAt = time.Now().Add(m.graceWindow)

	m.previous = outgoing
	m.current = next
	return nil
}

// ExportPrivatePEM serializes the current private key as PKCS1 PEM, for use
// by cmd/keygen-style tooling. Not part of the runtime hot path.
func (m *Manager) ExportPrivatePEM() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	der := x509.MarshalPKCS1PrivateKey(m.current.privateKey)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}
