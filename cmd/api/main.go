package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ssocore/platform/internal/api"
	"github.com/ssocore/platform/internal/authz"
	"github.com/ssocore/platform/internal/config"
	"github.com/ssocore/platform/internal/credential"
	"github.com/ssocore/platform/internal/delivery"
	"github.com/ssocore/platform/internal/identity"
	"github.com/ssocore/platform/internal/keys"
	"github.com/ssocore/platform/internal/notify"
	"github.com/ssocore/platform/internal/otp"
	"github.com/ssocore/platform/internal/risk"
	"github.com/ssocore/platform/internal/session"
	"github.com/ssocore/platform/internal/store/memory"
	"github.com/ssocore/platform/internal/tokens"
	"github.com/ssocore/platform/internal/workflow/flows"
	"github.com/ssocore/platform/pkg/logger"
)

func main() {
	// 0. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		println("configuration invalid:", err.Error())
		os.Exit(1)
	}

	// 1. Setup Global Logger
	log := logger.Setup(cfg.Environment)
	log.Info("application_startup", "env", cfg.Environment)

	// 2. Setup Sentry
	sentryDSN := os.Getenv("SENTRY_DSN")
	if sentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              sentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.Environment,
		})
		if err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	// 3. Signing keys
	privateKeyPEM := os.Getenv("JWT_PRIVATE_KEY")
	if privateKeyPEM == "" {
		log.Error("jwt_private_key_missing", "details", "fatal")
		os.Exit(1)
	}
	km, err := keys.NewManager(privateKeyPEM, cfg.Token.AccessTTL)
	if err != nil {
		log.Error("key_manager_init_failed", "error", err)
		os.Exit(1)
	}

	// 4. Stores. Every store is in-memory; cfg.DatabaseURL is not read here,
	// and the postgres package's RefreshTokenStore/RevokedTokenStore/OtpStore
	// (the only three that package implements) are not wired in.
	users := memory.NewUserStore()
	roles := memory.NewRoleStore()
	refreshTokens := memory.NewRefreshTokenStore()
	revokedTokens := memory.NewRevokedTokenStore()
	otpSessions := memory.NewOtpStore()
	sessions := memory.NewSessionStore()
	auditSink := memory.NewAuditSink()

	// 5. Core services
	tokenEngine, err := tokens.NewEngine(km, revokedTokens, refreshTokens, tokens.Config{
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
	})
	if err != nil {
		log.Error("token_engine_init_failed", "error", err)
		os.Exit(1)
	}

	passwordPolicy, ok := credential.Template(cfg.Password.Template)
	if !ok {
		log.Error("password_policy_template_unknown", "template", cfg.Password.Template)
		os.Exit(1)
	}
	hasher := credential.NewArgon2Hasher()

	riskEngine := risk.NewEngine(risk.Weights{
		NewIP:             cfg.Risk.WeightNewIP,
		MissingDeviceFP:   cfg.Risk.WeightNoDeviceFP,
		RecentFailureRate: cfg.Risk.WeightRecentFailures,
	})

	identitySvc, err := identity.NewService(identity.Config{
		Users:  users,
		Hasher: hasher,
		Policy: passwordPolicy,
		Tokens: tokenEngine,
		Risk:   riskEngine,
		Audit:  auditSink,
	})
	if err != nil {
		log.Error("identity_service_init_failed", "error", err)
		os.Exit(1)
	}

	otpSvc := otp.NewService(otpSessions, otp.Config{
		DefaultLength:      cfg.OTP.Length,
		DefaultTTL:         cfg.OTP.TTL,
		DefaultMaxAttempts: cfg.OTP.MaxAttempts,
	})

	dispatcher := delivery.NewDispatcher(
		&notify.DevSmsSender{Logger: log},
		&notify.DevEmailSender{Logger: log},
		delivery.BreakerConfig{
			FailureThreshold:         cfg.CircuitBreaker.FailureThreshold,
			ResetTimeout:             cfg.CircuitBreaker.ResetTimeout,
			HalfOpenSuccessThreshold: cfg.CircuitBreaker.HalfOpenSuccessThreshold,
		},
		10, 20,
	)
	_ = dispatcher // constructed only; no service or flow below is given it

	sessionSvc := session.NewService(sessions, riskEngine, cfg.Session.TTL)
	authorizer := authz.NewAuthorizer(roles)

	// 6. Workflow engines (one per flow type, spec §4.9)
	_ = flows.NewEngines(flows.Deps{
		Users:    users,
		Roles:    roles,
		Identity: identitySvc,
		OTP:      otpSvc,
		Session:  sessionSvc,
		Authz:    authorizer,
		Hasher:   hasher,

		WebAuthnRPID:     getEnv("WEBAUTHN_RPID", "ssocore.dev"),
		WebAuthnRPOrigin: getEnv("WEBAUTHN_RPORIGIN", "https://ssocore.dev"),
		WebAuthnRPName:   "ssocore",
	})

	// 7. Setup HTTP server: only the unauthenticated discovery endpoints are
	// in scope for wire transport (spec §1 Non-goal).
	server := api.NewServer(km, cfg.Token.Issuer, log)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// 8. Start server, then block for a shutdown signal.
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("server_listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second) // 20s allows for long DB queries to finish
		defer cancel()

		// Shutdown HTTP Server
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		log.Info("server_shutdown_complete")
		return // Exit main
	}
}

func getEnv(name, defaultVal string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultVal
}
