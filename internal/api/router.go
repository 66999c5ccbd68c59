// Package api exposes the two unauthenticated discovery endpoints a
// relying-party token consumer needs to validate tokens out of band: JWKS
// publication and OpenID-style configuration discovery. Full wire routing
// for the engines themselves (login, register, refresh...) is out of
// scope, per spec §1's explicit Non-goal; everything else about HTTP
// transport here is grounded on the teacher's internal/api/router.go and
// public.go chi conventions.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ssocore/platform/internal/keys"
)

// Server wires just the well-known discovery surface.
type Server struct {
	Router *chi.Mux
	Logger *slog.Logger
}

// NewServer builds the chi router for the well-known endpoints, using
// issuer as the "issuer" field of the OpenID configuration document.
func NewServer(km *keys.Manager, issuer string, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	discovery := NewDiscoveryHandler(km, issuer)
	r.Get("/.well-known/jwks.json", discovery.JWKS)
	r.Get("/.well-known/openid-configuration", discovery.OpenIDConfiguration)

	return &Server{Router: r, Logger: logger}
}

// DiscoveryHandler serves the JWKS and OpenID configuration documents.
type DiscoveryHandler struct {
	km     *keys.Manager
	issuer string
}

func NewDiscoveryHandler(km *keys.Manager, issuer string) *DiscoveryHandler {
	return &DiscoveryHandler{km: km, issuer: issuer}
}

func (h *DiscoveryHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.km.JWKS()); err != nil {
		slog.Error("failed to encode jwks", "error", err)
	}
}

// openIDConfiguration is the minimal subset of the OpenID Connect discovery
// document that this core actually backs: issuer identity and the JWKS
// location. Endpoints this core doesn't serve (authorization_endpoint,
// userinfo_endpoint) are intentionally omitted rather than stubbed.
type openIDConfiguration struct {
	Issuer                 string   `json:"issuer"`
	JWKSURI                string   `json:"jwks_uri"`
	IDTokenSigningAlgs     []string `json:"id_token_signing_alg_values_supported"`
	ResponseTypesSupported []string `json:"response_types_supported"`
}

func (h *DiscoveryHandler) OpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	doc := openIDConfiguration{
		Issuer:                 h.issuer,
		JWKSURI:                h.issuer + "/.well-known/jwks.json",
		IDTokenSigningAlgs:     []string{"RS256"},
		ResponseTypesSupported: []string{"token"},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		slog.Error("failed to encode openid configuration", "error", err)
	}
}
