package tokens_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/tokens"
)

func stubMintAccess(userID, tenantID uuid.UUID) (*tokens.Minted, error) {
	return &tokens.Minted{Token: "stub", TokenType: "Bearer", ExpiresIn: 900, JTI: uuid.NewString()}, nil
}

func TestIssueRefresh_ReturnsPlaintextOnce(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	userID, tenantID := uuid.New(), uuid.New()

	issued, err := engine.IssueRefresh(context.Background(), userID, tenantID, tokens.DeviceContext{Device: "pixel-8"})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Plaintext)
	require.Equal(t, userID, issued.Record.UserID)
	require.NotEqual(t, issued.Plaintext, issued.Record.TokenHash)
}

func TestRotate_IssuesNewFamilyMember(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	userID, tenantID := uuid.New(), uuid.New()

	issued, err := engine.IssueRefresh(context.Background(), userID, tenantID, tokens.DeviceContext{})
	require.NoError(t, err)

	result, err := engine.Rotate(context.Background(), issued.Plaintext, tokens.DeviceContext{}, stubMintAccess)
	require.NoError(t, err)
	require.Equal(t, issued.Record.FamilyID, result.Refresh.Record.FamilyID)
	require.NotEqual(t, issued.Record.TokenHash, result.Refresh.Record.TokenHash)
}

func TestRotate_ReuseOfRotatedSecretRevokesFamily(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	userID, tenantID := uuid.New(), uuid.New()

	issued, err := engine.IssueRefresh(context.Background(), userID, tenantID, tokens.DeviceContext{})
	require.NoError(t, err)

	_, err = engine.Rotate(context.Background(), issued.Plaintext, tokens.DeviceContext{}, stubMintAccess)
	require.NoError(t, err)

	// Reusing the already-rotated (now revoked) secret must be treated as a
	// breach and revoke the whole family.
	_, err = engine.Rotate(context.Background(), issued.Plaintext, tokens.DeviceContext{}, stubMintAccess)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindTokenRevoked))
}

func TestRotate_ConcurrentRotationsOnlyOneWins(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	userID, tenantID := uuid.New(), uuid.New()

	issued, err := engine.IssueRefresh(context.Background(), userID, tenantID, tokens.DeviceContext{})
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	successCount := 0
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Rotate(context.Background(), issued.Plaintext, tokens.DeviceContext{}, stubMintAccess)
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successCount, "exactly one concurrent rotation of the same secret should succeed")
}

func TestRevokeFamily_RevokesAllMembers(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	userID, tenantID := uuid.New(), uuid.New()

	issued, err := engine.IssueRefresh(context.Background(), userID, tenantID, tokens.DeviceContext{})
	require.NoError(t, err)

	require.NoError(t, engine.RevokeFamily(context.Background(), issued.Record.FamilyID, "admin_action"))

	_, err = engine.Rotate(context.Background(), issued.Plaintext, tokens.DeviceContext{}, stubMintAccess)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindTokenRevoked))
}
