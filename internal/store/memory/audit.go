package memory

import (
	"context"
	"sync"

	"github.com/ssocore/platform/internal/store"
)

// AuditSink is an in-memory store.AuditSink that simply records events,
// for tests that want to assert on what was emitted without a logger.
type AuditSink struct {
	mu     sync.Mutex
	Events []store.Event
}

func NewAuditSink() *AuditSink {
	return &AuditSink{}
}

func (a *AuditSink) Log(ctx context.Context, event store.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Events = append(a.Events, event)
}
