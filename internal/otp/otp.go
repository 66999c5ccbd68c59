// Package otp implements the OTP Service (spec §4.5): generation, hashed
// session storage, TTL/attempt enforcement. Delivery is delegated to
// internal/delivery; this package owns only the session lifecycle.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/apperr"
	"github.com/ssocore/platform/internal/store"
)

// GenerateNumeric returns a uniformly random numeric code of length L in
// [10^(L-1), 10^L), spec §4.5.
func GenerateNumeric(length int) (string, error) {
	if length <= 0 {
		return "", apperr.New(apperr.KindConfigurationError, "otp length must be positive")
	}
	lower := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	span := new(big.Int).Sub(upper, lower)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", apperr.Wrap(apperr.KindCryptoError, "failed to generate random OTP", err)
	}
	n.Add(n, lower)
	return fmt.Sprintf("%0*d", length, n), nil
}

const alphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateAlphanumeric returns a uniformly random alphanumeric token of the
// given length, spec §4.5.
func GenerateAlphanumeric(length int) (string, error) {
	if length <= 0 {
		return "", apperr.New(apperr.KindConfigurationError, "otp length must be positive")
	}
	out := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphanumericAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", apperr.Wrap(apperr.KindCryptoError, "failed to generate random OTP", err)
		}
		out[i] = alphanumericAlphabet[idx.Int64()]
	}
	return string(out), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Config bundles the OTP Service's tunables.
type Config struct {
	DefaultLength      int
	DefaultTTL         time.Duration
	DefaultMaxAttempts int
}

// Service implements session creation, verification, and cleanup.
type Service struct {
	store store.OtpStore
	cfg   Config

	// locks guarantees "under a per-session lock" (spec §4.5) for
	// Verify, without holding the store's own lock across a network hop.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewService(st store.OtpStore, cfg Config) *Service {
	return &Service{store: st, cfg: cfg, locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (s *Service) lockFor(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// CreateSessionInput is the spec §4.5 create_session input.
type CreateSessionInput struct {
	Purpose        string
	Identifier     string
	IdentifierType string
	DeliveryMethod string
	UserID         *uuid.UUID
	TenantID       uuid.UUID
	TTL            time.Duration  // zero = use Config default
	ExplicitToken  string         // non-empty to bypass generation (e.g. resend of a known code)
	Alphanumeric   bool
}

// CreateSession stores a hashed OTP session and returns it alongside the
// plaintext token, spec §4.5.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*store.OtpSession, string, error) {
	token := in.ExplicitToken
	var err error
	if token == "" {
		if in.Alphanumeric {
			token, err = GenerateAlphanumeric(s.length())
		} else {
			token, err = GenerateNumeric(s.length())
		}
		if err != nil {
			return nil, "", err
		}
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	now := time.Now()
	session := store.OtpSession{
		ID:             uuid.New(),
		UserID:         in.UserID,
		TenantID:       in.TenantID,
		IdentifierType: in.IdentifierType,
		Identifier:     in.Identifier,
		OtpHash:        hashToken(token),
		DeliveryMethod: in.DeliveryMethod,
		Purpose:        in.Purpose,
		MaxAttempts:    s.cfg.DefaultMaxAttempts,
		SentAt:         now,
		ExpiresAt:      now.Add(ttl),
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, "", apperr.AsDatabaseError(err)
	}
	return &session, token, nil
}

func (s *Service) length() int {
	if s.cfg.DefaultLength <= 0 {
		return 6
	}
	return s.cfg.DefaultLength
}

// Verify checks a candidate code against a stored session, spec §4.5.
func (s *Service) Verify(ctx context.Context, sessionID uuid.UUID, candidate string) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		return apperr.New(apperr.KindInvalidOtp, "otp session not found")
	}
	if session.VerifiedAt != nil {
		return apperr.New(apperr.KindConflict, "otp session already verified")
	}
	if time.Now().After(session.ExpiresAt) {
		return apperr.New(apperr.KindOtpExpired, "otp session has expired")
	}
	if session.Attempts >= session.MaxAttempts {
		return apperr.New(apperr.KindMaxAttemptsExceeded, "otp session has exhausted its attempts")
	}

	attempts, err := s.store.IncrementAttempts(ctx, sessionID)
	if err != nil {
		return apperr.AsDatabaseError(err)
	}

	candidateHash := hashToken(candidate)
	match := subtle.ConstantTimeCompare([]byte(candidateHash), []byte(session.OtpHash)) == 1

	if !match {
		if attempts >= session.MaxAttempts {
			return apperr.New(apperr.KindMaxAttemptsExceeded, "otp session has exhausted its attempts")
		}
		return apperr.New(apperr.KindInvalidOtp, "otp code does not match")
	}

	if err := s.store.MarkVerified(ctx, sessionID); err != nil {
		return apperr.AsDatabaseError(err)
	}
	return nil
}

// CleanupExpired removes sessions that are expired or already verified,
// spec §4.5's background cleanup task.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.store.CleanupExpired(ctx, time.Now())
	if err != nil {
		return 0, apperr.AsDatabaseError(err)
	}
	return n, nil
}
