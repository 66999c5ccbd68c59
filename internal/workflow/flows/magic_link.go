package flows

import (
	"context"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/otp"
	"github.com/ssocore/platform/internal/workflow"
)

// RegisterMagicLink wires the magic-link resume flow: a single
// verify_identifier step that redeems a previously-issued OTP session
// (the emailed link token) and completes the login, grounded on the
// original source's auth-api/src/handlers/workflow/magic_link.rs
// single-shot redemption shape.
func RegisterMagicLink(e *workflow.Engine, d Deps) {
	e.RegisterHandler(workflow.StateVerifyIdentifier, &magicLinkRedeemHandler{otp: d.OTP})
}

type magicLinkRedeemHandler struct {
	otp *otp.Service
}

func (h *magicLinkRedeemHandler) Validate(ctx context.Context, fc *workflow.Context) error {
	return nil
}

func (h *magicLinkRedeemHandler) Handle(ctx context.Context, fc *workflow.Context, action workflow.Action) (workflow.FlowState, error) {
	sessionIDStr, _ := action.Payload["session_id"].(string)
	token, _ := action.Payload["token"].(string)
	if sessionIDStr == "" || token == "" {
		return "", apperr.New(apperr.KindValidationError, "session_id and token are required")
	}

	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "session_id is malformed")
	}

	if err := h.otp.Verify(ctx, sessionID, token); err != nil {
		return "", err
	}
	return workflow.StateSuccess, nil
}
