package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/credential"
	"github.com/ssocore/platform/internal/identity"
	"github.com/ssocore/platform/internal/keys"
	"github.com/ssocore/platform/internal/risk"
	"github.com/ssocore/platform/internal/store/memory"
	"github.com/ssocore/platform/internal/tokens"
)

func testPEM(t *testing.T) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(priv)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func newTestService(t *testing.T) (*identity.Service, *memory.UserStore) {
	t.Helper()
	users := memory.NewUserStore()

	km, err := keys.NewManager(testPEM(t), time.Hour)
	require.NoError(t, err)
	blacklist := memory.NewRevokedTokenStore()
	refresh := memory.NewRefreshTokenStore()
	tokenEngine, err := tokens.NewEngine(km, blacklist, refresh, tokens.Config{
		Issuer: "https://auth.example.test", Audience: "ssocore-clients",
		AccessTTL: 15 * time.Minute, RefreshTTL: 30 * 24 * time.Hour,
	})
	require.NoError(t, err)

	svc, err := identity.NewService(identity.Config{
		Users:  users,
		Hasher: credential.NewArgon2Hasher(),
		Policy: credential.Enterprise(),
		Tokens: tokenEngine,
		Risk:   risk.NewEngine(risk.DefaultWeights()),
		Audit:  memory.NewAuditSink(),
	})
	require.NoError(t, err)
	return svc, users
}

func TestRegister_RejectsMalformedEmail(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: uuid.New(), IdentifierType: "email", Email: "not-an-email",
		Password: "Correct-Horse-Battery-Staple-9!",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidationError, apperr.KindOf(err))
}

func TestRegister_RejectsMalformedPhone(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: uuid.New(), IdentifierType: "phone", Phone: "555-1234",
		Password: "Correct-Horse-Battery-Staple-9!",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidationError, apperr.KindOf(err))
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: uuid.New(), IdentifierType: "email", Email: "weak@example.com",
		Password: "password",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPasswordPolicyViolation, apperr.KindOf(err))
}

func TestRegister_RejectsDuplicateIdentifier(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()
	in := identity.RegisterInput{
		TenantID: tenantID, IdentifierType: "email", Email: "dup@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
	}
	_, err := svc.Register(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func activate(t *testing.T, users *memory.UserStore, userID uuid.UUID) {
	t.Helper()
	require.NoError(t, users.UpdateStatus(context.Background(), userID, "active"))
}

func TestLogin_HappyPath(t *testing.T) {
	svc, users := newTestService(t)
	tenantID := uuid.New()
	user, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: tenantID, IdentifierType: "email", Email: "login@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
	})
	require.NoError(t, err)
	activate(t, users, user.ID)

	result, err := svc.Login(context.Background(), identity.LoginInput{
		TenantID: tenantID, Identifier: "login@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
		IP:       net.ParseIP("10.0.0.1"), UserAgent: "test-agent",
		RiskCtx: risk.Context{IPKnownToUser: true, DeviceFingerprint: "fp-1"},
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Access)
	assert.NotNil(t, result.Refresh)
	assert.Equal(t, risk.LevelLow, result.RiskAssess.Level)
}

func TestLogin_UnknownIdentifierUsesDecoyHash(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Login(context.Background(), identity.LoginInput{
		TenantID: uuid.New(), Identifier: "nobody@example.com", Password: "whatever",
		IP:      net.ParseIP("10.0.0.1"),
		RiskCtx: risk.Context{IPKnownToUser: true},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidCredentials, apperr.KindOf(err))
}

func TestLogin_WrongPasswordIncrementsAttemptsAndEventuallyLocks(t *testing.T) {
	svc, users := newTestService(t)
	tenantID := uuid.New()
	user, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: tenantID, IdentifierType: "email", Email: "lockout@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
	})
	require.NoError(t, err)
	activate(t, users, user.ID)

	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = svc.Login(context.Background(), identity.LoginInput{
			TenantID: tenantID, Identifier: "lockout@example.com", Password: "wrong-password",
			IP: net.ParseIP("10.0.0.1"), RiskCtx: risk.Context{IPKnownToUser: true},
		})
	}
	require.Error(t, lastErr)

	refreshed, err := users.FindByID(context.Background(), tenantID, user.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.CanAuthenticate())

	_, err = svc.Login(context.Background(), identity.LoginInput{
		TenantID: tenantID, Identifier: "lockout@example.com", Password: "Correct-Horse-Battery-Staple-9!",
		IP: net.ParseIP("10.0.0.1"), RiskCtx: risk.Context{IPKnownToUser: true},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindAccountLocked, apperr.KindOf(err))
}

func TestLogin_DeniedAtCriticalRisk(t *testing.T) {
	svc, users := newTestService(t)
	tenantID := uuid.New()
	user, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: tenantID, IdentifierType: "email", Email: "risky@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
	})
	require.NoError(t, err)
	activate(t, users, user.ID)

	_, err = svc.Login(context.Background(), identity.LoginInput{
		TenantID: tenantID, Identifier: "risky@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
		IP:       net.ParseIP("10.0.0.1"),
		RiskCtx:  risk.Context{IPKnownToUser: false, DeviceFingerprint: "", RecentFailureCount: 10},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindAccountLocked, apperr.KindOf(err))
}

func TestAdminOps_BanActivateUpdateStatus(t *testing.T) {
	svc, users := newTestService(t)
	tenantID := uuid.New()
	user, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: tenantID, IdentifierType: "email", Email: "admin@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Ban(context.Background(), user.ID))
	refreshed, err := users.FindByID(context.Background(), tenantID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "suspended", refreshed.Status)

	require.NoError(t, svc.Activate(context.Background(), user.ID))
	refreshed, err = users.FindByID(context.Background(), tenantID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", refreshed.Status)

	err = svc.UpdateStatus(context.Background(), user.ID, "not_a_status")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidationError, apperr.KindOf(err))
}

func TestUpdatePassword_RejectsWeakAndHistoryMatch(t *testing.T) {
	svc, users := newTestService(t)
	tenantID := uuid.New()
	user, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: tenantID, IdentifierType: "email", Email: "changer@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
	})
	require.NoError(t, err)

	err = svc.UpdatePassword(context.Background(), user.ID, "weak", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPasswordPolicyViolation, apperr.KindOf(err))

	current, err := users.FindByID(context.Background(), tenantID, user.ID)
	require.NoError(t, err)

	err = svc.UpdatePassword(context.Background(), user.ID, "Correct-Horse-Battery-Staple-9!", []string{current.PasswordHash})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPasswordPolicyViolation, apperr.KindOf(err))

	err = svc.UpdatePassword(context.Background(), user.ID, "Totally-Different-Pass-7!", []string{current.PasswordHash})
	require.NoError(t, err)
}

func TestUpdateProfile_DeepMerge(t *testing.T) {
	svc, users := newTestService(t)
	tenantID := uuid.New()
	user, err := svc.Register(context.Background(), identity.RegisterInput{
		TenantID: tenantID, IdentifierType: "email", Email: "profile@example.com",
		Password: "Correct-Horse-Battery-Staple-9!",
		ProfileData: map[string]any{
			"display_name": "Ada",
			"settings": map[string]any{
				"theme":    "dark",
				"timezone": "UTC",
			},
			"tags": []any{"a", "b"},
		},
	})
	require.NoError(t, err)

	err = svc.UpdateProfile(context.Background(), user, map[string]any{
		"settings": map[string]any{"theme": "light"},
		"tags":     []any{"c"},
	})
	require.NoError(t, err)

	refreshed, err := users.FindByID(context.Background(), tenantID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", refreshed.ProfileData["display_name"])
	settings := refreshed.ProfileData["settings"].(map[string]any)
	assert.Equal(t, "light", settings["theme"])
	assert.Equal(t, "UTC", settings["timezone"])
	assert.Equal(t, []any{"c"}, refreshed.ProfileData["tags"])
}

func TestLazyRegister_CreatesNewVerifiedUser(t *testing.T) {
	svc, users := newTestService(t)
	tenantID := uuid.New()

	user, isNew, err := svc.LazyRegister(context.Background(), tenantID, "email", "jit@example.com")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "active", user.Status)

	refreshed, err := users.FindByID(context.Background(), tenantID, user.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.EmailVerified)
}

func TestLazyRegister_ReturnsExistingUserUnchanged(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	first, isNew, err := svc.LazyRegister(context.Background(), tenantID, "email", "again@example.com")
	require.NoError(t, err)
	require.True(t, isNew)

	second, isNew, err := svc.LazyRegister(context.Background(), tenantID, "email", "again@example.com")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
}
