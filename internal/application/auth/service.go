// Package auth composes the credential, OTP, reset and session components
// into the request-level account flows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-session-auth/internal/application/credential"
	"github.com/go-session-auth/internal/application/notification"
	"github.com/go-session-auth/internal/application/otp"
	"github.com/go-session-auth/internal/application/reset"
	"github.com/go-session-auth/internal/application/session"
	"github.com/go-session-auth/internal/domain"
	"github.com/go-session-auth/internal/infrastructure/sns"
	"github.com/go-session-auth/internal/observability"
)

// Operation names used for metrics.
const (
	OpRegister       = "register"
	OpVerifyOTP      = "verify_otp"
	OpResendOTP      = "resend_otp"
	OpLogin          = "login"
	OpLogout         = "logout"
	OpForgotPassword = "forgot_password"
	OpResetPassword  = "reset_password"
)

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.SessionHandle, error)
	ResendOTP(ctx context.Context, req domain.EmailRequest) (*domain.User, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.SessionHandle, error)
	Logout(ctx context.Context, sessionID string) error
	ForgotPassword(ctx context.Context, req domain.EmailRequest) error
	ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error
}

type service struct {
	credentials credential.Service
	otps        otp.Service
	resets      reset.Service
	sessions    session.Service
	notifier    notification.Service
	events      sns.Publisher
	metrics     *observability.Metrics
}

type ServiceDeps struct {
	Credentials credential.Service
	OTPs        otp.Service
	Resets      reset.Service
	Sessions    session.Service
	Notifier    notification.Service
	Events      sns.Publisher          // optional
	Metrics     *observability.Metrics // optional
}

func NewService(deps ServiceDeps) Service {
	events := deps.Events
	if events == nil {
		events = sns.Nop{}
	}
	return &service{
		credentials: deps.Credentials,
		otps:        deps.OTPs,
		resets:      deps.Resets,
		sessions:    deps.Sessions,
		notifier:    deps.Notifier,
		events:      events,
		metrics:     deps.Metrics,
	}
}

// Register creates an unverified account and e-mails its first OTP. If the
// e-mail cannot be sent the account is removed again so the address stays
// free for another attempt.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (u *domain.User, err error) {
	defer s.observe(OpRegister, time.Now(), &err)

	reg, err := s.beginRegistration(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.SendOTP(ctx, reg.user, reg.code, false); err != nil {
		reg.rollback(ctx, err)
		return nil, err
	}
	reg.commit(ctx)
	return reg.user, nil
}

// VerifyOTP confirms the account's e-mail and opens its first session.
func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (h *domain.SessionHandle, err error) {
	defer s.observe(OpVerifyOTP, time.Now(), &err)

	u, err := s.credentials.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.otps.Validate(ctx, u, strings.TrimSpace(req.OTP)); err != nil {
		return nil, err
	}
	s.publish(ctx, sns.EventUserVerified, u)
	slog.InfoContext(ctx, "email verified", "user_id", u.UserID)
	return s.sessions.Create(ctx, u)
}

func (s *service) ResendOTP(ctx context.Context, req domain.EmailRequest) (u *domain.User, err error) {
	defer s.observe(OpResendOTP, time.Now(), &err)

	u, err = s.credentials.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	code, err := s.otps.Reissue(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.SendOTP(ctx, u, code, true); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the password before the verification state so that only the
// password holder learns the account is unverified.
func (s *service) Login(ctx context.Context, req domain.LoginRequest) (h *domain.SessionHandle, err error) {
	defer s.observe(OpLogin, time.Now(), &err)

	u, err := s.credentials.FindByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !s.credentials.VerifySecret(u, req.Password) {
		return nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	if !u.Verified {
		return nil, fmt.Errorf("please verify your email first: %w", domain.ErrForbidden)
	}
	return s.sessions.Create(ctx, u)
}

func (s *service) Logout(ctx context.Context, sessionID string) (err error) {
	defer s.observe(OpLogout, time.Now(), &err)
	return s.sessions.Destroy(ctx, sessionID)
}

func (s *service) ForgotPassword(ctx context.Context, req domain.EmailRequest) (err error) {
	defer s.observe(OpForgotPassword, time.Now(), &err)

	u, err := s.credentials.FindByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	token, err := s.resets.Issue(ctx, u)
	if err != nil {
		return err
	}
	return s.notifier.SendPasswordReset(ctx, u, token)
}

// ResetPassword checks the new password before looking the token up, then
// consumes the token and revokes the account's sessions.
func (s *service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) (err error) {
	defer s.observe(OpResetPassword, time.Now(), &err)

	if err := reset.CheckNewPassword(req.NewPassword, req.ConfirmPassword); err != nil {
		return err
	}
	u, err := s.resets.Validate(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return err
	}
	if err := s.resets.Consume(ctx, u, req.NewPassword, req.ConfirmPassword); err != nil {
		return err
	}
	s.publish(ctx, sns.EventPasswordReset, u)
	slog.InfoContext(ctx, "password reset", "user_id", u.UserID)
	return nil
}

func (s *service) observe(op string, start time.Time, err *error) {
	s.metrics.Observe(op, *err, time.Since(start))
}

func (s *service) publish(ctx context.Context, eventType string, u *domain.User) {
	e := sns.Event{Type: eventType, UserID: u.UserID, Email: u.Email, At: time.Now().UTC()}
	if err := s.events.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "failed to publish account event", "event", eventType, "user_id", u.UserID, "err", err)
	}
}
