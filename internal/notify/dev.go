// Package notify provides development-mode store.SmsSender and
// store.EmailSender implementations, grounded on the teacher's
// internal/notify.DevMailer (prints to stdout instead of calling a real
// provider). Neither the teacher nor the rest of the retrieval pack
// imports a real SMS/email provider SDK, so there is nothing to wire a
// production sender to without fabricating a dependency.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// DevSmsSender logs OTP codes instead of dispatching a real SMS.
type DevSmsSender struct {
	Logger *slog.Logger
}

func (s *DevSmsSender) SendOTP(ctx context.Context, to, otp string) (string, error) {
	s.Logger.Info("dev sms dispatch", "to", to, "otp", otp)
	return uuid.NewString(), nil
}

// DevEmailSender logs outgoing email instead of dispatching through an SMTP
// relay or provider API.
type DevEmailSender struct {
	Logger *slog.Logger
}

func (s *DevEmailSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	s.Logger.Info("dev email dispatch", "to", to, "subject", subject)
	return uuid.NewString(), nil
}
