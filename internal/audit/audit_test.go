package audit_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ssocore/platform/internal/audit"
	"github.com/ssocore/platform/internal/store"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

func TestSink_ChainIsVerifiable(t *testing.T) {
	secret := []byte("test-hmac-secret")
	sink := audit.NewSink(discardLogger(), secret)

	events := []store.Event{
		{Action: "user.login", ActorID: uuid.New(), TargetID: uuid.New(), TenantID: uuid.New(), Timestamp: time.Now()},
		{Action: "user.logout", ActorID: uuid.New(), TargetID: uuid.New(), TenantID: uuid.New(), Timestamp: time.Now()},
	}

	var chained []audit.ChainedEvent
	for _, e := range events {
		chained = append(chained, sink.LogChained(context.Background(), e))
	}

	assert.True(t, audit.VerifyChain(secret, chained))
}

func TestSink_TamperedLinkFailsVerification(t *testing.T) {
	secret := []byte("test-hmac-secret")
	sink := audit.NewSink(discardLogger(), secret)

	events := []store.Event{
		{Action: "user.login", ActorID: uuid.New(), TenantID: uuid.New(), Timestamp: time.Now()},
		{Action: "role.assign", ActorID: uuid.New(), TenantID: uuid.New(), Timestamp: time.Now()},
	}
	var chained []audit.ChainedEvent
	for _, e := range events {
		chained = append(chained, sink.LogChained(context.Background(), e))
	}

	chained[0].Action = "role.delete" // tamper with an already-logged entry
	assert.False(t, audit.VerifyChain(secret, chained))
}

func TestSink_WrongSecretFailsVerification(t *testing.T) {
	sink := audit.NewSink(discardLogger(), []byte("secret-a"))
	chained := []audit.ChainedEvent{
		sink.LogChained(context.Background(), store.Event{Action: "user.login", Timestamp: time.Now()}),
	}
	assert.False(t, audit.VerifyChain([]byte("secret-b"), chained))
}
