// Package problem maps apperr kinds to RFC 7807 Problem Details envelopes,
// per spec §6.
package problem

import (
	"net/http"

	"github.com/ssocore/platform/internal/apperr"
)

// Details is the wire envelope, media type application/problem+json.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ContentType is the media type Details is always served as.
const ContentType = "application/problem+json"

type mapping struct {
	code   string
	title  string
	status int
}

// codes is the stable AUTH_0xx vocabulary from spec §6 (excerpt carried in
// full here; every apperr.Kind used by the core maps to one entry).
var codes = map[apperr.Kind]mapping{
	apperr.KindValidationError:         {"AUTH_001", "Validation error", http.StatusBadRequest},
	apperr.KindConflict:                {"AUTH_005", "Conflict", http.StatusConflict},
	apperr.KindInvalidCredentials:      {"AUTH_007", "Invalid credentials", http.StatusUnauthorized},
	apperr.KindInvalidOtp:              {"AUTH_008", "Invalid OTP", http.StatusBadRequest},
	apperr.KindOtpExpired:              {"AUTH_009", "OTP expired", http.StatusBadRequest},
	apperr.KindAccountLocked:           {"AUTH_011", "Account locked", http.StatusForbidden},
	apperr.KindAccountSuspended:        {"AUTH_012", "Account suspended", http.StatusForbidden},
	apperr.KindAccountDeleted:          {"AUTH_013", "Account deleted", http.StatusGone},
	apperr.KindRateLimitExceeded:       {"AUTH_017", "Rate limited", http.StatusTooManyRequests},
	apperr.KindTokenInvalid:            {"AUTH_020", "Token invalid", http.StatusUnauthorized},
	apperr.KindTokenExpired:            {"AUTH_021", "Token expired", http.StatusUnauthorized},
	apperr.KindTokenRevoked:            {"AUTH_022", "Token revoked", http.StatusUnauthorized},
	apperr.KindUnauthorized:            {"AUTH_023", "Unauthorized", http.StatusUnauthorized},
	apperr.KindUserNotFound:            {"AUTH_024", "User not found", http.StatusNotFound},
	apperr.KindSessionNotFound:         {"AUTH_025", "Session not found", http.StatusNotFound},
	apperr.KindDatabaseError:           {"AUTH_026", "Internal error", http.StatusInternalServerError},
	apperr.KindExternalServiceError:    {"AUTH_027", "External service error", http.StatusBadGateway},
	apperr.KindCryptoError:             {"AUTH_044", "Cryptographic error", http.StatusInternalServerError},
	apperr.KindCircuitBreakerOpen:      {"AUTH_046", "Circuit breaker open", http.StatusServiceUnavailable},
	apperr.KindPasswordPolicyViolation: {"AUTH_001", "Password policy violation", http.StatusBadRequest},
	apperr.KindMaxAttemptsExceeded:     {"AUTH_008", "Maximum attempts exceeded", http.StatusBadRequest},
	apperr.KindTokenMalformedSignature: {"AUTH_020", "Token invalid", http.StatusUnauthorized},
	apperr.KindTokenUnsupportedAlgorithm: {"AUTH_020", "Token invalid", http.StatusUnauthorized},
	apperr.KindPasswordExpired:         {"AUTH_007", "Password expired", http.StatusUnauthorized},
	apperr.KindAllMethodsFailed:        {"AUTH_027", "All delivery methods failed", http.StatusBadGateway},
	apperr.KindConfigurationError:      {"AUTH_026", "Configuration error", http.StatusInternalServerError},
	apperr.KindInternalError:           {"AUTH_026", "Internal error", http.StatusInternalServerError},
}

// FromError builds a Details envelope from any error. Errors that did not
// originate from apperr are reported as opaque internal errors — their
// message is never echoed back (spec §7: "No error kind's message is
// derived from untrusted input without redaction").
func FromError(err error, instance, requestID string) Details {
	kind := apperr.KindOf(err)
	m, ok := codes[kind]
	if !ok {
		m = mapping{"AUTH_026", "Internal error", http.StatusInternalServerError}
	}

	d := Details{
		Type:      "https://errors.ssocore.dev/" + m.code,
		Title:     m.title,
		Status:    m.status,
		Code:      m.code,
		Instance:  instance,
		RequestID: requestID,
	}

	// Client-correctable, auth-state and rate/availability kinds get a detail
	// message; server-fatal kinds never leak internals to the caller.
	switch kind {
	case apperr.KindDatabaseError, apperr.KindConfigurationError, apperr.KindInternalError, apperr.KindCryptoError, apperr.KindExternalServiceError:
		d.Detail = ""
	default:
		d.Detail = m.title
	}
	return d
}
