package apperr

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// Report logs err at the severity its group implies and, for server-fatal
// kinds, forwards it to Sentry. Client-correctable and auth-state kinds are
// expected traffic and are logged at warning; only server-fatal kinds are
// noisy enough (and actionable enough) to page someone.
func Report(ctx context.Context, logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	kind := KindOf(err)
	group := groups[kind]

	if group != GroupServerFatal {
		logger.WarnContext(ctx, "request_error", "kind", string(kind), "error", err)
		return
	}

	logger.ErrorContext(ctx, "internal_error", "kind", string(kind), "error", err)

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if sentry.CurrentHub().Client() != nil {
		sentry.CaptureException(err)
	}
}
