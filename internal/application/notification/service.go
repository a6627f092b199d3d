// Package notification renders the account e-mails and hands them to the
// mailer.
package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-session-auth/internal/domain"
)

// E-mail subjects.
const (
	SubjectOTP       = "Your Verification OTP"
	SubjectResendOTP = "Your New Verification OTP"
	SubjectReset     = "Password Reset Request"
)

const (
	templateOTP   = "otp.html"
	templateReset = "reset.html"
)

//go:embed templates/*.html
var embedded embed.FS

type Service interface {
	SendOTP(ctx context.Context, u *domain.User, code string, resend bool) error
	SendPasswordReset(ctx context.Context, u *domain.User, token string) error
}

type mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

// templateSource supplies template overrides, e.g. from an S3 bucket.
type templateSource interface {
	Fetch(ctx context.Context, key string) (string, error)
}

type service struct {
	mailer    mailer
	overrides templateSource
	baseURL   string
	otpTTL    time.Duration
	resetTTL  time.Duration
}

type ServiceDeps struct {
	Mailer    mailer
	Templates templateSource // optional
	BaseURL   string
	OTPTTL    time.Duration
	ResetTTL  time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		mailer:    deps.Mailer,
		overrides: deps.Templates,
		baseURL:   deps.BaseURL,
		otpTTL:    deps.OTPTTL,
		resetTTL:  deps.ResetTTL,
	}
}

type otpData struct {
	Name             string
	Code             string
	Resend           bool
	ExpiresInMinutes int
}

type resetData struct {
	Name             string
	Link             string
	ExpiresInMinutes int
}

func (s *service) SendOTP(ctx context.Context, u *domain.User, code string, resend bool) error {
	subject := SubjectOTP
	if resend {
		subject = SubjectResendOTP
	}
	body, err := s.render(ctx, templateOTP, otpData{
		Name:             u.Name,
		Code:             code,
		Resend:           resend,
		ExpiresInMinutes: int(s.otpTTL.Minutes()),
	})
	if err != nil {
		return err
	}
	return s.send(u.Email, subject, body)
}

func (s *service) SendPasswordReset(ctx context.Context, u *domain.User, token string) error {
	body, err := s.render(ctx, templateReset, resetData{
		Name:             u.Name,
		Link:             s.resetLink(token),
		ExpiresInMinutes: int(s.resetTTL.Minutes()),
	})
	if err != nil {
		return err
	}
	return s.send(u.Email, SubjectReset, body)
}

func (s *service) resetLink(token string) string {
	return s.baseURL + "/reset-password?token=" + url.QueryEscape(token)
}

func (s *service) send(to, subject, body string) error {
	if err := s.mailer.SendEmail(to, subject, body); err != nil {
		return fmt.Errorf("send %q: %v: %w", subject, err, domain.ErrDelivery)
	}
	return nil
}

// render executes the named template, preferring an override when one is
// configured and falling back to the embedded copy if it can't be used.
func (s *service) render(ctx context.Context, name string, data any) (string, error) {
	if s.overrides != nil {
		src, err := s.overrides.Fetch(ctx, name)
		if err == nil {
			out, err := execute(name, src, data)
			if err == nil {
				return out, nil
			}
			slog.WarnContext(ctx, "template override unusable, using embedded", "template", name, "err", err)
		} else {
			slog.WarnContext(ctx, "template override unavailable, using embedded", "template", name, "err", err)
		}
	}
	src, err := embedded.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", name, err)
	}
	return execute(name, string(src), data)
}

func execute(name, src string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
