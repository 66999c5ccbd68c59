package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/otp"
	"github.com/ssocore/platform/internal/store/memory"
)

func TestGenerateNumeric_HonorsLengthBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := otp.GenerateNumeric(6)
		require.NoError(t, err)
		assert.Len(t, code, 6)
	}
}

func newService(t *testing.T) *otp.Service {
	t.Helper()
	st := memory.NewOtpStore()
	return otp.NewService(st, otp.Config{DefaultLength: 6, DefaultTTL: time.Minute, DefaultMaxAttempts: 3})
}

func TestCreateAndVerify_HappyPath(t *testing.T) {
	svc := newService(t)
	session, token, err := svc.CreateSession(context.Background(), otp.CreateSessionInput{
		Purpose: "login", Identifier: "user@example.com", IdentifierType: "email", DeliveryMethod: "email", TenantID: uuid.New(),
	})
	require.NoError(t, err)

	err = svc.Verify(context.Background(), session.ID, token)
	require.NoError(t, err)
}

func TestVerify_RejectsWrongCode(t *testing.T) {
	svc := newService(t)
	session, _, err := svc.CreateSession(context.Background(), otp.CreateSessionInput{
		Purpose: "login", Identifier: "user@example.com", IdentifierType: "email", DeliveryMethod: "email", TenantID: uuid.New(),
	})
	require.NoError(t, err)

	err = svc.Verify(context.Background(), session.ID, "000000")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidOtp))
}

func TestVerify_ExhaustsAttempts(t *testing.T) {
	st := memory.NewOtpStore()
	svc := otp.NewService(st, otp.Config{DefaultLength: 6, DefaultTTL: time.Minute, DefaultMaxAttempts: 2})
	session, _, err := svc.CreateSession(context.Background(), otp.CreateSessionInput{
		Purpose: "login", Identifier: "user@example.com", IdentifierType: "email", DeliveryMethod: "email", TenantID: uuid.New(),
	})
	require.NoError(t, err)

	err = svc.Verify(context.Background(), session.ID, "000000")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidOtp))

	err = svc.Verify(context.Background(), session.ID, "111111")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindMaxAttemptsExceeded))
}

func TestVerify_RejectsExpiredSession(t *testing.T) {
	st := memory.NewOtpStore()
	svc := otp.NewService(st, otp.Config{DefaultLength: 6, DefaultTTL: time.Millisecond, DefaultMaxAttempts: 3})
	session, token, err := svc.CreateSession(context.Background(), otp.CreateSessionInput{
		Purpose: "login", Identifier: "user@example.com", IdentifierType: "email", DeliveryMethod: "email", TenantID: uuid.New(),
	})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	err = svc.Verify(context.Background(), session.ID, token)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindOtpExpired))
}

func TestVerify_RejectsAlreadyVerifiedSession(t *testing.T) {
	svc := newService(t)
	session, token, err := svc.CreateSession(context.Background(), otp.CreateSessionInput{
		Purpose: "login", Identifier: "user@example.com", IdentifierType: "email", DeliveryMethod: "email", TenantID: uuid.New(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Verify(context.Background(), session.ID, token))

	err = svc.Verify(context.Background(), session.ID, token)
	require.Error(t, err)
}

func TestCleanupExpired_RemovesExpiredAndVerified(t *testing.T) {
	st := memory.NewOtpStore()
	svc := otp.NewService(st, otp.Config{DefaultLength: 6, DefaultTTL: time.Millisecond, DefaultMaxAttempts: 3})
	_, _, err := svc.CreateSession(context.Background(), otp.CreateSessionInput{
		Purpose: "login", Identifier: "a@b.com", IdentifierType: "email", DeliveryMethod: "email", TenantID: uuid.New(),
	})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	n, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
