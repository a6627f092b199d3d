// Package otp issues and checks the six-digit codes that prove ownership of
// a registration e-mail address.
package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/go-session-auth/internal/domain"
	pkgtoken "github.com/go-session-auth/internal/pkg/token"
)

const (
	codeMin = 100000
	codeMax = 999999
)

type Service interface {
	Issue(ctx context.Context, u *domain.User) (string, error)
	Validate(ctx context.Context, u *domain.User, submitted string) error
	Reissue(ctx context.Context, u *domain.User) (string, error)
}

type userStore interface {
	SetOTP(ctx context.Context, userID, code string, expiresAt int64) error
}

type verifier interface {
	MarkVerified(ctx context.Context, u *domain.User) error
}

type service struct {
	repo     userStore
	verifier verifier
	ttl      time.Duration
	now      func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
	Verifier verifier
	TTL      time.Duration
	Now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.UserRepo, verifier: deps.Verifier, ttl: deps.TTL, now: now}
}

// Issue generates a fresh code, persists it with its expiry and returns it
// for delivery. Any previous code stops being valid.
func (s *service) Issue(ctx context.Context, u *domain.User) (string, error) {
	code, err := pkgtoken.NewNumericCode(codeMin, codeMax)
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.ttl).Unix()
	if err := s.repo.SetOTP(ctx, u.UserID, code, expiresAt); err != nil {
		return "", err
	}
	u.OTP = code
	u.OTPExpiresAt = expiresAt
	return code, nil
}

// Validate checks submitted against the pending code. A failed attempt
// leaves the code in place; success marks the account verified.
func (s *service) Validate(ctx context.Context, u *domain.User, submitted string) error {
	if u.Verified {
		return fmt.Errorf("email already verified: %w", domain.ErrAlreadyVerified)
	}
	if u.OTP == "" {
		return fmt.Errorf("no pending OTP: %w", domain.ErrMismatch)
	}
	if s.now().Unix() >= u.OTPExpiresAt {
		return fmt.Errorf("OTP expired: %w", domain.ErrExpired)
	}
	if subtle.ConstantTimeCompare([]byte(u.OTP), []byte(submitted)) != 1 {
		return fmt.Errorf("invalid OTP: %w", domain.ErrMismatch)
	}
	return s.verifier.MarkVerified(ctx, u)
}

// Reissue replaces the pending code of an unverified account.
func (s *service) Reissue(ctx context.Context, u *domain.User) (string, error) {
	if u.Verified {
		return "", fmt.Errorf("email already verified: %w", domain.ErrAlreadyVerified)
	}
	return s.Issue(ctx, u)
}
