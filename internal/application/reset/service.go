// Package reset manages single-use password reset tokens.
package reset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-session-auth/internal/domain"
	pkgtoken "github.com/go-session-auth/internal/pkg/token"
)

// tokenBytes gives 256 bits of entropy, 64 hex characters.
const tokenBytes = 32

type Service interface {
	Issue(ctx context.Context, u *domain.User) (string, error)
	Validate(ctx context.Context, token string) (*domain.User, error)
	Consume(ctx context.Context, u *domain.User, newPassword, confirmPassword string) error
}

type userStore interface {
	SetResetToken(ctx context.Context, userID, token string, expiresAt int64) error
	GetByResetToken(ctx context.Context, token string) (*domain.User, error)
}

type passwordUpdater interface {
	UpdatePassword(ctx context.Context, u *domain.User, newPassword string) error
}

type sessionRevoker interface {
	DestroyAllForAccount(ctx context.Context, email string) error
}

type service struct {
	repo      userStore
	passwords passwordUpdater
	sessions  sessionRevoker
	ttl       time.Duration
	now       func() time.Time
}

type ServiceDeps struct {
	UserRepo  userStore
	Passwords passwordUpdater
	Sessions  sessionRevoker
	TTL       time.Duration
	Now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      deps.UserRepo,
		passwords: deps.Passwords,
		sessions:  deps.Sessions,
		ttl:       deps.TTL,
		now:       now,
	}
}

// CheckNewPassword applies the confirmation and length rules for a new
// password, in that order.
func CheckNewPassword(newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return fmt.Errorf("passwords do not match: %w", domain.ErrMismatch)
	}
	if len(strings.TrimSpace(newPassword)) < domain.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", domain.MinPasswordLength, domain.ErrTooShort)
	}
	return nil
}

// Issue stores a new token on u, replacing any pending one, and returns it
// for delivery.
func (s *service) Issue(ctx context.Context, u *domain.User) (string, error) {
	token, err := pkgtoken.NewHex(tokenBytes)
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.ttl).Unix()
	if err := s.repo.SetResetToken(ctx, u.UserID, token, expiresAt); err != nil {
		return "", err
	}
	u.ResetToken = token
	u.ResetTokenExpiresAt = expiresAt
	return token, nil
}

// Validate resolves token to its account. Unknown, expired and already used
// tokens all fail with the same ErrInvalidToken.
func (s *service) Validate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	u, err := s.repo.GetByResetToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if u.ResetToken != token || u.ResetTokenExpiresAt <= s.now().Unix() {
		return nil, domain.ErrInvalidToken
	}
	return u, nil
}

// Consume sets the new password on an account returned by Validate, which
// clears the token, then revokes every session of the account.
func (s *service) Consume(ctx context.Context, u *domain.User, newPassword, confirmPassword string) error {
	if err := CheckNewPassword(newPassword, confirmPassword); err != nil {
		return err
	}
	if u.ResetToken == "" {
		return domain.ErrInvalidToken
	}
	if err := s.passwords.UpdatePassword(ctx, u, newPassword); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidToken) {
			return domain.ErrInvalidToken
		}
		return err
	}
	// Sessions older than the password change are rejected on validation, so
	// a failed bulk delete leaves nothing usable behind.
	if err := s.sessions.DestroyAllForAccount(ctx, u.Email); err != nil {
		slog.WarnContext(ctx, "failed to revoke sessions after password reset", "user_id", u.UserID, "err", err)
	}
	return nil
}
