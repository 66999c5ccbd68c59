// Package config loads and validates the core's configuration surface,
// per spec §6. It expands the teacher's env-var Load() into the full named
// surface (token, password, otp, rate_limit, risk, session, circuit_breaker).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully-resolved, validated configuration surface.
type Config struct {
	Token          TokenConfig
	Password       PasswordConfig
	OTP            OTPConfig
	RateLimit      RateLimitConfig
	Risk           RiskConfig
	Session        SessionConfig
	CircuitBreaker CircuitBreakerConfig

	AllowPublicRegistration bool
	DatabaseURL             string
	Environment             string // "development" | "production"
}

type TokenConfig struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Algorithm  string // fixed "RS256"
}

type PasswordConfig struct {
	Template string // basic | enterprise | high_security | compliance
}

type OTPConfig struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
}

type RateLimitRule struct {
	Name       string
	Capacity   int
	RefillRate float64 // tokens per Window
	Window     time.Duration
}

type RateLimitConfig struct {
	Rules []RateLimitRule
}

type RiskConfig struct {
	WeightNewIP          float64
	WeightNoDeviceFP     float64
	WeightRecentFailures float64
}

type SessionConfig struct {
	TTL time.Duration
}

type CircuitBreakerConfig struct {
	FailureThreshold         uint32
	ResetTimeout             time.Duration
	HalfOpenSuccessThreshold uint32
}

// Load reads configuration from the environment, loading a local .env file
// first if present (teacher pattern, promoted from an indirect godotenv
// dependency to a direct one).
func Load() (Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is not an error

	cfg := Config{
		Token: TokenConfig{
			Issuer:     getEnv("TOKEN_ISSUER", "https://id.ssocore.dev"),
			Audience:   getEnv("TOKEN_AUDIENCE", "ssocore"),
			AccessTTL:  getEnvAsDuration("TOKEN_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: getEnvAsDuration("TOKEN_REFRESH_TTL", 30*24*time.Hour),
			Algorithm:  "RS256",
		},
		Password: PasswordConfig{
			Template: getEnv("PASSWORD_POLICY_TEMPLATE", "enterprise"),
		},
		OTP: OTPConfig{
			Length:      getEnvAsInt("OTP_LENGTH", 6),
			TTL:         getEnvAsDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		},
		RateLimit: RateLimitConfig{
			Rules: []RateLimitRule{
				{Name: "login_per_identifier", Capacity: 5, RefillRate: 5, Window: time.Minute},
				{Name: "login_per_ip", Capacity: 20, RefillRate: 20, Window: time.Minute},
				{Name: "otp_per_identifier", Capacity: 3, RefillRate: 3, Window: 10 * time.Minute},
			},
		},
		Risk: RiskConfig{
			WeightNewIP:          0.3,
			WeightNoDeviceFP:     0.2,
			WeightRecentFailures: 0.4,
		},
		Session: SessionConfig{
			TTL: getEnvAsDuration("SESSION_TTL", 60*time.Minute),
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:         uint32(getEnvAsInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5)),
			ResetTimeout:             getEnvAsDuration("CIRCUIT_BREAKER_RESET_TIMEOUT", 60*time.Second),
			HalfOpenSuccessThreshold: uint32(getEnvAsInt("CIRCUIT_BREAKER_HALF_OPEN_SUCCESS_THRESHOLD", 2)),
		},
		AllowPublicRegistration: getEnvAsBool("ALLOW_PUBLIC_REGISTRATION", false),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		Environment:             getEnv("APP_ENV", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configuration values that violate spec §3/§4 invariants
// at load time, per original_source's auth-config validation crate.
func (c Config) Validate() error {
	if c.Token.AccessTTL > 60*time.Minute {
		return fmt.Errorf("config: token.access_ttl %s exceeds the 60 minute maximum", c.Token.AccessTTL)
	}
	if c.Token.AccessTTL <= 0 {
		return fmt.Errorf("config: token.access_ttl must be positive")
	}
	if c.Token.RefreshTTL > 30*24*time.Hour {
		return fmt.Errorf("config: token.refresh_ttl %s exceeds the 30 day maximum", c.Token.RefreshTTL)
	}
	if c.Token.Algorithm != "RS256" {
		return fmt.Errorf("config: token.algorithm must be RS256, got %q", c.Token.Algorithm)
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("config: otp.length %d out of sane range [4,10]", c.OTP.Length)
	}
	if c.OTP.MaxAttempts < 1 {
		return fmt.Errorf("config: otp.max_attempts must be >= 1")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("config: session.ttl must be positive")
	}
	if c.CircuitBreaker.FailureThreshold == 0 {
		return fmt.Errorf("config: circuit_breaker.failure_threshold must be >= 1")
	}
	return nil
}

func getEnv(name, defaultVal string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}
