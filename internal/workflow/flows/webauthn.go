package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
	"github.com/ssocore/platform/internal/workflow"
)

// RegisterWebAuthn wires a two-step passkey ceremony: start (issue a
// registration or assertion challenge) and verify (finish it), grounded on
// the original source's auth-api/src/handlers/workflow/webauthn/steps.rs.
// The ceremony's session data, options and mode are kept in the flow
// context's Data; a finished registration adds only the new credential's ID
// there. No credential list is stored or loaded, so the user handed to
// BeginLogin/FinishLogin has no credentials.
func RegisterWebAuthn(e *workflow.Engine, d Deps) {
	instance, err := webauthn.New(&webauthn.Config{
		RPDisplayName: d.WebAuthnRPName,
		RPID:          d.WebAuthnRPID,
		RPOrigin:      d.WebAuthnRPOrigin,
	})
	if err != nil {
		// Configuration is validated at process startup; a malformed RPID/
		// origin here means the caller never should have registered this
		// flow in the first place.
		panic(err)
	}

	e.RegisterHandler(workflow.StateStart, &webauthnStartHandler{instance: instance, users: d.Users})
	e.RegisterHandler(workflow.StateVerifyIdentifier, &webauthnVerifyHandler{instance: instance, users: d.Users})
}

// webauthnUser adapts store.User to webauthn.User. Its credentials field is
// never filled: this package has no CredentialStore collaborator and loads
// no credentials from storage or from the flow Data map.
type webauthnUser struct {
	id          uuid.UUID
	email       string
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte          { return []byte(u.id.String()) }
func (u *webauthnUser) WebAuthnName() string        { return u.email }
func (u *webauthnUser) WebAuthnDisplayName() string  { return u.email }
func (u *webauthnUser) WebAuthnIcon() string         { return "" }
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

type webauthnStartHandler struct {
	instance *webauthn.WebAuthn
	users    store.UserStore
}

func (h *webauthnStartHandler) Validate(ctx context.Context, fc *workflow.Context) error {
	return nil
}

func (h *webauthnStartHandler) Handle(ctx context.Context, fc *workflow.Context, action workflow.Action) (workflow.FlowState, error) {
	identifier, _ := action.Payload["identifier"].(string)
	if identifier == "" {
		return "", apperr.New(apperr.KindValidationError, "identifier is required")
	}
	tenantID, err := uuid.Parse(fc.TenantID)
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "flow context tenant id is malformed")
	}

	user, err := h.users.FindByIdentifier(ctx, tenantID, identifier)
	if err != nil {
		return "", apperr.AsDatabaseError(err)
	}
	wu := &webauthnUser{id: user.ID, email: user.Email}

	mode, _ := action.Payload["mode"].(string) // "register" | "login"
	var options any
	var session *webauthn.SessionData
	if mode == "register" {
		options, session, err = h.instance.BeginRegistration(wu)
	} else {
		options, session, err = h.instance.BeginLogin(wu)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindExternalServiceError, "failed to begin webauthn ceremony", err)
	}

	encodedOptions, err := json.Marshal(options)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternalError, "failed to encode webauthn options", err)
	}
	encodedSession, err := json.Marshal(session)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternalError, "failed to encode webauthn session", err)
	}

	userID := user.ID.String()
	fc.UserID = &userID
	fc.Data["identifier"] = identifier
	fc.Data["webauthn_mode"] = mode
	fc.Data["webauthn_options"] = string(encodedOptions)
	fc.Data["webauthn_session"] = string(encodedSession)
	return workflow.StateVerifyIdentifier, nil
}

type webauthnVerifyHandler struct {
	instance *webauthn.WebAuthn
	users    store.UserStore
}

func (h *webauthnVerifyHandler) Validate(ctx context.Context, fc *workflow.Context) error {
	if dataString(fc.Data, "webauthn_session") == "" {
		return apperr.New(apperr.KindValidationError, "flow context has no pending webauthn ceremony")
	}
	return nil
}

func (h *webauthnVerifyHandler) Handle(ctx context.Context, fc *workflow.Context, action workflow.Action) (workflow.FlowState, error) {
	credentialJSON, _ := action.Payload["credential"].(string)
	if credentialJSON == "" {
		return "", apperr.New(apperr.KindValidationError, "credential response is required")
	}

	tenantID, err := uuid.Parse(fc.TenantID)
	if err != nil {
		return "", apperr.New(apperr.KindValidationError, "flow context tenant id is malformed")
	}
	user, err := h.users.FindByIdentifier(ctx, tenantID, dataString(fc.Data, "identifier"))
	if err != nil {
		return "", apperr.AsDatabaseError(err)
	}
	wu := &webauthnUser{id: user.ID, email: user.Email}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(dataString(fc.Data, "webauthn_session")), &session); err != nil {
		return "", apperr.Wrap(apperr.KindInternalError, "failed to decode webauthn session", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader([]byte(credentialJSON)))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternalError, "failed to build webauthn verification request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if dataString(fc.Data, "webauthn_mode") == "register" {
		cred, err := h.instance.FinishRegistration(wu, session, req)
		if err != nil {
			return "", apperr.New(apperr.KindInvalidCredentials, "webauthn registration verification failed")
		}
		fc.Data["webauthn_credential_id"] = string(cred.ID)
	} else {
		if _, err := h.instance.FinishLogin(wu, session, req); err != nil {
			return "", apperr.New(apperr.KindInvalidCredentials, "webauthn assertion verification failed")
		}
	}
	return workflow.StateSuccess, nil
}
