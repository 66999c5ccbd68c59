package flows_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/credential"
	"github.com/ssocore/platform/internal/identity"
	"github.com/ssocore/platform/internal/keys"
	"github.com/ssocore/platform/internal/otp"
	"github.com/ssocore/platform/internal/risk"
	"github.com/ssocore/platform/internal/store"
	"github.com/ssocore/platform/internal/store/memory"
	"github.com/ssocore/platform/internal/tokens"
	"github.com/ssocore/platform/internal/workflow"
	"github.com/ssocore/platform/internal/workflow/flows"
)

func testPEM(t *testing.T) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(priv)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}))
}

// testFixture bundles flows.Deps alongside the concrete collaborators a
// test needs direct access to (to seed a user, or to read back an OTP's
// plaintext token before it's hashed into the store).
type testFixture struct {
	flows.Deps
	hasher  credential.Hasher
	otpSess *otp.Service
}

func newFixture(t *testing.T) testFixture {
	t.Helper()
	users := memory.NewUserStore()
	roles := memory.NewRoleStore()

	km, err := keys.NewManager(testPEM(t), time.Hour)
	require.NoError(t, err)
	tokenEngine, err := tokens.NewEngine(km, memory.NewRevokedTokenStore(), memory.NewRefreshTokenStore(), tokens.Config{
		Issuer: "https://auth.example.test", Audience: "ssocore-clients",
		AccessTTL: 15 * time.Minute, RefreshTTL: 30 * 24 * time.Hour,
	})
	require.NoError(t, err)

	hasher := credential.NewArgon2Hasher()
	identitySvc, err := identity.NewService(identity.Config{
		Users:  users,
		Hasher: hasher,
		Policy: credential.Enterprise(),
		Tokens: tokenEngine,
		Risk:   risk.NewEngine(risk.DefaultWeights()),
		Audit:  memory.NewAuditSink(),
	})
	require.NoError(t, err)

	otpSvc := otp.NewService(memory.NewOtpStore(), otp.Config{
		DefaultLength: 6, DefaultTTL: 10 * time.Minute, DefaultMaxAttempts: 5,
	})

	return testFixture{
		Deps: flows.Deps{
			Users:    users,
			Roles:    roles,
			Identity: identitySvc,
			OTP:      otpSvc,
			Hasher:   hasher,
		},
		hasher:  hasher,
		otpSess: otpSvc,
	}
}

func newFlowContext(flowType string, state workflow.FlowState, tenantID uuid.UUID) *workflow.Context {
	return &workflow.Context{
		FlowID:       uuid.NewString(),
		TenantID:     tenantID.String(),
		FlowType:     flowType,
		CurrentState: state,
		Data:         make(map[string]any),
	}
}

func seedUser(t *testing.T, f testFixture, tenantID uuid.UUID, email, password string) *store.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	user, err := f.Users.Create(context.Background(), store.CreateUserRequest{
		TenantID: tenantID, IdentifierType: "email", PrimaryIdentifier: email,
		Email: email, Status: "active",
	}, hash)
	require.NoError(t, err)
	return user
}

func TestLoginFlow_HappyPathReachesSuccess(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	seedUser(t, f, tenantID, "alice@example.com", "Correct-Horse-Battery-Staple-9!")

	engine := workflow.NewEngine()
	flows.RegisterLogin(engine, f.Deps)

	fc := newFlowContext(flows.FlowTypeLogin, workflow.StateStart, tenantID)
	_, err := engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"identifier": "alice@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StateIdentify, fc.CurrentState)

	result, err := engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"password": "Correct-Horse-Battery-Staple-9!", "ip": "203.0.113.5"},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StateSuccess, result.NextState)
	require.NotEmpty(t, fc.Data["access_token"])
}

func TestLoginFlow_WrongPasswordFails(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	seedUser(t, f, tenantID, "bob@example.com", "Correct-Horse-Battery-Staple-9!")

	engine := workflow.NewEngine()
	flows.RegisterLogin(engine, f.Deps)

	fc := newFlowContext(flows.FlowTypeLogin, workflow.StateStart, tenantID)
	_, err := engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"identifier": "bob@example.com"},
	})
	require.NoError(t, err)

	_, err = engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"password": "wrong-password"},
	})
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidCredentials, apperr.KindOf(err))
}

func TestRegistrationFlow_IdentifyStepIssuesSession(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()

	engine := workflow.NewEngine()
	flows.RegisterRegistration(engine, f.Deps)

	fc := newFlowContext(flows.FlowTypeRegistration, workflow.StateStart, tenantID)
	_, err := engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"identifier_type": "email", "identifier": "carol@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StateIdentify, fc.CurrentState)
	require.NotEmpty(t, fc.Data["otp_session_id"])
}

func TestRegistrationFlow_FullCycleCreatesUser(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()

	// Create the identity-proving OTP session directly so the test can
	// capture the plaintext token, which is never round-tripped through
	// the flow context (only the session id is, since the flow context
	// isn't a safe place to carry a bearer secret).
	session, plaintext, err := f.otpSess.CreateSession(context.Background(), otp.CreateSessionInput{
		TenantID: tenantID, IdentifierType: "email", Identifier: "carol@example.com",
		DeliveryMethod: "email", Purpose: "registration",
	})
	require.NoError(t, err)

	engine := workflow.NewEngine()
	flows.RegisterRegistration(engine, f.Deps)

	fc := newFlowContext(flows.FlowTypeRegistration, workflow.StateIdentify, tenantID)
	fc.Data["identifier_type"] = "email"
	fc.Data["identifier"] = "carol@example.com"
	fc.Data["otp_session_id"] = session.ID.String()

	_, err = engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"code": plaintext},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StateVerifyIdentifier, fc.CurrentState)

	result, err := engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"password": "Correct-Horse-Battery-Staple-9!"},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StateSetCredentials, result.NextState)
	require.NotNil(t, fc.UserID)

	result, err = engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StateSuccess, result.NextState)
}

func TestLazyUpgradeFlow_SetsPasswordForLazyUser(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	user, _, err := f.Identity.LazyRegister(context.Background(), tenantID, "email", "dora@example.com")
	require.NoError(t, err)

	engine := workflow.NewEngine()
	flows.RegisterLazyUpgrade(engine, f.Deps)

	userID := user.ID.String()
	fc := newFlowContext(flows.FlowTypeLazyUpgrade, workflow.StateProfileRequired, tenantID)
	fc.UserID = &userID

	result, err := engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"password": "Correct-Horse-Battery-Staple-9!"},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StateSuccess, result.NextState)
}

func TestLazyUpgradeFlow_RejectsWeakPassword(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	user, _, err := f.Identity.LazyRegister(context.Background(), tenantID, "email", "erin@example.com")
	require.NoError(t, err)

	engine := workflow.NewEngine()
	flows.RegisterLazyUpgrade(engine, f.Deps)

	userID := user.ID.String()
	fc := newFlowContext(flows.FlowTypeLazyUpgrade, workflow.StateProfileRequired, tenantID)
	fc.UserID = &userID

	_, err = engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"password": "weak"},
	})
	require.Error(t, err)
	require.Equal(t, apperr.KindPasswordPolicyViolation, apperr.KindOf(err))
}

func TestMagicLinkFlow_RedeemsValidSession(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	session, plaintext, err := f.otpSess.CreateSession(context.Background(), otp.CreateSessionInput{
		TenantID: tenantID, IdentifierType: "email", Identifier: "finn@example.com",
		DeliveryMethod: "email", Purpose: "login", Alphanumeric: true,
	})
	require.NoError(t, err)

	engine := workflow.NewEngine()
	flows.RegisterMagicLink(engine, f.Deps)

	fc := newFlowContext(flows.FlowTypeMagicLink, workflow.StateVerifyIdentifier, tenantID)
	result, err := engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"session_id": session.ID.String(), "token": plaintext},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StateSuccess, result.NextState)
}

func TestMagicLinkFlow_RejectsWrongToken(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	session, _, err := f.otpSess.CreateSession(context.Background(), otp.CreateSessionInput{
		TenantID: tenantID, IdentifierType: "email", Identifier: "grace@example.com",
		DeliveryMethod: "email", Purpose: "login", Alphanumeric: true,
	})
	require.NoError(t, err)

	engine := workflow.NewEngine()
	flows.RegisterMagicLink(engine, f.Deps)

	fc := newFlowContext(flows.FlowTypeMagicLink, workflow.StateVerifyIdentifier, tenantID)
	_, err = engine.Process(context.Background(), fc, workflow.Action{
		Payload: map[string]any{"session_id": session.ID.String(), "token": "wrong-token"},
	})
	require.Error(t, err)
}
