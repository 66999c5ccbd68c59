package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPEM(t *testing.T) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(priv)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}))
}

func TestManager_JWKSContainsCurrentKey(t *testing.T) {
	m, err := NewManager(testPEM(t), 15*time.Minute)
	require.NoError(t, err)

	jwks := m.JWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, m.DecodingKey().KeyID(), jwks.Keys[0].Kid)
	require.Equal(t, "RS256", jwks.Keys[0].Alg)
}

func TestManager_RotateKeepsOldKeyVerifiableDuringGrace(t *testing.T) {
	m, err := NewManager(testPEM(t), 50*time.Millisecond)
	require.NoError(t, err)

	oldKid := m.DecodingKey().KeyID()
	require.NoError(t, m.Rotate())
	newKid := m.DecodingKey().KeyID()

	require.NotEqual(t, oldKid, newKid)

	_, ok := m.VerifyingKeyFor(oldKid)
	require.True(t, ok, "old key must remain acceptable during the grace window")

	jwks := m.JWKS()
	require.Len(t, jwks.Keys, 2)

	time.Sleep(80 * time.Millisecond)
	_, ok = m.VerifyingKeyFor(oldKid)
	require.False(t, ok, "old key must stop validating after the grace window elapses")
}
