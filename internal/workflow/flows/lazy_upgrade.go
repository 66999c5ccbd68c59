package flows

import (
	"context"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/identity"
	"github.com/ssocore/platform/internal/workflow"
)

// RegisterLazyUpgrade wires the lazy-account-to-full-account upgrade flow:
// a passwordless, JIT-registered user (spec §4.4's LazyRegister) sets a
// password to gain normal credential-based login, grounded on the original
// source's auth-api/src/handlers/workflow/lazy_upgrade.rs.
func RegisterLazyUpgrade(e *workflow.Engine, d Deps) {
	e.RegisterHandler(workflow.StateProfileRequired, &lazyUpgradeSetPasswordHandler{identity: d.Identity})
}

type lazyUpgradeSetPasswordHandler struct {
	identity *identity.Service
}

func (h *lazyUpgradeSetPasswordHandler) Validate(ctx context.Context, fc *workflow.Context) error {
	if fc.UserID == nil {
		return apperr.New(apperr.KindValidationError, "flow context has no lazily-registered user to upgrade")
	}
	return nil
}

func (h *lazyUpgradeSetPasswordHandler) Handle(ctx context.Context, fc *workflow.Context, action workflow.Action) (workflow.FlowState, error) {
	password, _ := action.Payload["password"].(string)
	if password == "" {
		return "", apperr.New(apperr.KindValidationError, "password is required")
	}

	userID, err := uuid.Parse(*fc.UserID)
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "flow context user id is malformed")
	}

	if err := h.identity.UpdatePassword(ctx, userID, password, nil); err != nil {
		return "", err
	}
	return workflow.StateSuccess, nil
}
