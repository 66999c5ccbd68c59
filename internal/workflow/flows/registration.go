package flows

import (
	"context"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/identity"
	"github.com/ssocore/platform/internal/otp"
	"github.com/ssocore/platform/internal/store"
	"github.com/ssocore/platform/internal/workflow"
)

// RegisterRegistration wires the self-serve registration flow:
// start -> identify -> verify_identifier -> set_credentials -> success.
// Each handler does the step that leads out of its state: start issues the
// OTP, identify verifies it, verify_identifier sets the password and creates
// the user, and set_credentials applies the optional profile patch (no
// profile_required state is entered). Grounded on the original source's
// auth-api/src/handlers/register.rs + verification.rs step sequence
// (submit identifier, prove ownership via OTP, then set a password).
func RegisterRegistration(e *workflow.Engine, d Deps) {
	e.RegisterHandler(workflow.StateStart, &registerIdentifyHandler{otp: d.OTP})
	e.RegisterHandler(workflow.StateIdentify, &registerVerifyHandler{otp: d.OTP})
	e.RegisterHandler(workflow.StateVerifyIdentifier, &registerSetCredentialsHandler{identity: d.Identity})
	e.RegisterHandler(workflow.StateSetCredentials, &registerProfileHandler{identity: d.Identity, users: d.Users})
}

type registerIdentifyHandler struct {
	otp *otp.Service
}

func (h *registerIdentifyHandler) Validate(ctx context.Context, fc *workflow.Context) error { return nil }

func (h *registerIdentifyHandler) Handle(ctx context.Context, fc *workflow.Context, action workflow.Action) (workflow.FlowState, error) {
	identifierType, _ := action.Payload["identifier_type"].(string)
	identifier, _ := action.Payload["identifier"].(string)
	if identifier == "" || (identifierType != "email" && identifierType != "phone") {
		return "", apperr.New(apperr.KindValidationError, "identifier and identifier_type (email|phone) are required")
	}

	tenantID, err := uuid.Parse(fc.TenantID)
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "flow context tenant id is malformed")
	}

	method := "email"
	if identifierType == "phone" {
		method = "sms"
	}
	session, _, err := h.otp.CreateSession(ctx, otp.CreateSessionInput{
		TenantID: tenantID, IdentifierType: identifierType, Identifier: identifier,
		DeliveryMethod: method, Purpose: "registration",
	})
	if err != nil {
		return "", err
	}

	fc.Data["identifier_type"] = identifierType
	fc.Data["identifier"] = identifier
	fc.Data["otp_session_id"] = session.ID.String()
	return workflow.StateIdentify, nil
}

type registerVerifyHandler struct {
	otp *otp.Service
}

func (h *registerVerifyHandler) Validate(ctx context.Context, fc *workflow.Context) error {
	if dataString(fc.Data, "otp_session_id") == "" {
		return apperr.New(apperr.KindValidationError, "flow context has no pending OTP session")
	}
	return nil
}

func (h *registerVerifyHandler) Handle(ctx context.Context, fc *workflow.Context, action workflow.Action) (workflow.FlowState, error) {
	code, _ := action.Payload["code"].(string)
	sessionID, err := uuid.Parse(dataString(fc.Data, "otp_session_id"))
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "flow context OTP session id is malformed")
	}
	if err := h.otp.Verify(ctx, sessionID, code); err != nil {
		return "", err
	}
	return workflow.StateVerifyIdentifier, nil
}

type registerSetCredentialsHandler struct {
	identity *identity.Service
}

func (h *registerSetCredentialsHandler) Validate(ctx context.Context, fc *workflow.Context) error {
	if dataString(fc.Data, "identifier") == "" {
		return apperr.New(apperr.KindValidationError, "flow context has no verified identifier")
	}
	return nil
}

func (h *registerSetCredentialsHandler) Handle(ctx context.Context, fc *workflow.Context, action workflow.Action) (workflow.FlowState, error) {
	password, _ := action.Payload["password"].(string)

	tenantID, err := uuid.Parse(fc.TenantID)
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "flow context tenant id is malformed")
	}

	identifierType := dataString(fc.Data, "identifier_type")
	in := identity.RegisterInput{
		TenantID: tenantID, IdentifierType: identifierType, Password: password,
		PrimaryIdentifier: dataString(fc.Data, "identifier"),
	}
	if identifierType == "email" {
		in.Email = dataString(fc.Data, "identifier")
	} else {
		in.Phone = dataString(fc.Data, "identifier")
	}

	user, err := h.identity.Register(ctx, in)
	if err != nil {
		return "", err
	}

	userID := user.ID.String()
	fc.UserID = &userID
	return workflow.StateSetCredentials, nil
}

type registerProfileHandler struct {
	identity *identity.Service
	users    store.UserStore
}

func (h *registerProfileHandler) Validate(ctx context.Context, fc *workflow.Context) error {
	if fc.UserID == nil {
		return apperr.New(apperr.KindValidationError, "flow context has no registered user")
	}
	return nil
}

func (h *registerProfileHandler) Handle(ctx context.Context, fc *workflow.Context, action workflow.Action) (workflow.FlowState, error) {
	profile, _ := action.Payload["profile"].(map[string]any)
	if profile == nil {
		return workflow.StateSuccess, nil
	}

	userID, err := uuid.Parse(*fc.UserID)
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "flow context user id is malformed")
	}
	tenantID, err := uuid.Parse(fc.TenantID)
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "flow context tenant id is malformed")
	}

	// UpdateProfile reads the existing record first, deep-merging the
	// patch spec §4.4 requires; the flow only carries the delta.
	existing, err := h.users.FindByID(ctx, tenantID, userID)
	if err != nil {
		return "", apperr.AsDatabaseError(err)
	}
	if err := h.identity.UpdateProfile(ctx, existing, profile); err != nil {
		return "", err
	}
	return workflow.StateSuccess, nil
}
