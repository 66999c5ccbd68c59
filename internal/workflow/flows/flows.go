// Package flows registers the concrete step handlers the core ships with
// (login, registration, magic-link resume, WebAuthn, lazy-upgrade) against
// a workflow.Engine. No flow is hard-coded in the engine itself — this
// package is just one caller of its registry, grounded on the step
// sequences in the original source's auth-api/src/handlers/workflow/* and
// on the teacher's pre-auth-token MFA ceremony.
package flows

import (
	"github.com/ssocore/platform/internal/authz"
	"github.com/ssocore/platform/internal/credential"
	"github.com/ssocore/platform/internal/identity"
	"github.com/ssocore/platform/internal/otp"
	"github.com/ssocore/platform/internal/session"
	"github.com/ssocore/platform/internal/store"
)

// Deps bundles every collaborator the shipped flows need. Individual flows
// only touch the subset they require.
type Deps struct {
	Users   store.UserStore
	Roles   store.RoleStore
	Identity *identity.Service
	OTP      *otp.Service
	Session  *session.Service
	Authz    *authz.Authorizer
	Hasher   credential.Hasher

	WebAuthnRPID     string
	WebAuthnRPOrigin string
	WebAuthnRPName   string
}

// dataString reads a string field out of a flow context's Data map.
func dataString(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}

// dataInt reads an int-ish field, tolerating the float64 JSON unmarshals
// leave behind when Data has been round-tripped through a persistence layer.
func dataInt(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
