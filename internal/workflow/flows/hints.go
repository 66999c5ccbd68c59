package flows

import "github.com/ssocore/platform/internal/workflow"

// UIHints is the fixed state->hint lookup table spec §4.9 requires: the
// engine never derives hints dynamically, it looks them up.
func UIHints(state workflow.FlowState) map[string]any {
	switch state {
	case workflow.StateIdentify:
		return map[string]any{"show": "identifier_input"}
	case workflow.StateAuthenticate:
		return map[string]any{"show": "password_input"}
	case workflow.StateMfaRequired:
		return map[string]any{"show": "otp_input", "channel": "totp"}
	case workflow.StateConsentRequired:
		return map[string]any{"show": "consent_form"}
	case workflow.StateProfileRequired:
		return map[string]any{"show": "profile_form"}
	case workflow.StateVerifyIdentifier:
		return map[string]any{"show": "otp_input"}
	case workflow.StateSetCredentials:
		return map[string]any{"show": "password_form"}
	case workflow.StateSuccess:
		return map[string]any{"redirect": true}
	case workflow.StateFailed:
		return map[string]any{"show": "error"}
	default:
		return nil
	}
}

// Flow type names, matching workflow.Context.FlowType in spec §3.
const (
	FlowTypeLogin        = "login"
	FlowTypeRegistration = "registration"
	FlowTypeMagicLink    = "magic_link"
	FlowTypeLazyUpgrade  = "lazy_upgrade"
	FlowTypeWebAuthn     = "webauthn"
)

// NewEngines builds one Engine per shipped flow type. Each flow gets its
// own Engine rather than sharing one, since two flows both registering a
// handler for the same FlowState (e.g. both login and registration start
// at StateStart) would otherwise silently clobber each other.
func NewEngines(d Deps) map[string]*workflow.Engine {
	engines := map[string]*workflow.Engine{
		FlowTypeLogin:        workflow.NewEngine(),
		FlowTypeRegistration: workflow.NewEngine(),
		FlowTypeMagicLink:    workflow.NewEngine(),
		FlowTypeLazyUpgrade:  workflow.NewEngine(),
		FlowTypeWebAuthn:     workflow.NewEngine(),
	}

	RegisterLogin(engines[FlowTypeLogin], d)
	RegisterRegistration(engines[FlowTypeRegistration], d)
	RegisterMagicLink(engines[FlowTypeMagicLink], d)
	RegisterLazyUpgrade(engines[FlowTypeLazyUpgrade], d)
	RegisterWebAuthn(engines[FlowTypeWebAuthn], d)

	for _, e := range engines {
		e.RegisterUIHints(UIHints)
	}
	return engines
}
