// Package credential owns account records: creation with a hashed secret,
// lookup, secret verification and the verified/password transitions.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-session-auth/internal/domain"
	"github.com/go-session-auth/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Create(ctx context.Context, name, email, password string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	VerifySecret(u *domain.User, candidate string) bool
	MarkVerified(ctx context.Context, u *domain.User) error
	UpdatePassword(ctx context.Context, u *domain.User, newPassword string) error
	Delete(ctx context.Context, u *domain.User) error
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkVerified(ctx context.Context, userID, code string) error
	UpdatePassword(ctx context.Context, userID, hash string, at time.Time, resetToken string) error
	Delete(ctx context.Context, u *domain.User) error
}

type service struct {
	repo       userStore
	bcryptCost int
	now        func() time.Time
}

type ServiceDeps struct {
	UserRepo   userStore
	BcryptCost int
	Now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.UserRepo, bcryptCost: cost, now: now}
}

// Create stores a new unverified account. Surrounding whitespace is stripped
// from every field and the e-mail is lowercased.
func (s *service) Create(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = domain.NormalizeEmail(email)
	password = strings.TrimSpace(password)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("name, email and password are required: %w", domain.ErrValidation)
	}
	if len(password) < domain.MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", domain.MinPasswordLength, domain.ErrValidation)
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrValidation)
	}
	return s.repo.GetByEmail(ctx, email)
}

// VerifySecret compares candidate, trimmed, against the stored hash.
func (s *service) VerifySecret(u *domain.User, candidate string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(strings.TrimSpace(candidate))) == nil
}

// MarkVerified promotes u and clears its OTP. The write is conditional on the
// OTP u was loaded with, so a code superseded in the meantime fails with
// ErrMismatch.
func (s *service) MarkVerified(ctx context.Context, u *domain.User) error {
	if u.Verified {
		return fmt.Errorf("email already verified: %w", domain.ErrAlreadyVerified)
	}
	if err := s.repo.MarkVerified(ctx, u.UserID, u.OTP); err != nil {
		return err
	}
	u.Verified = true
	u.OTP = ""
	u.OTPExpiresAt = 0
	return nil
}

// UpdatePassword re-hashes and replaces the secret and clears any pending
// reset token. When u carries a reset token the write only succeeds while
// that token is still live in the store.
func (s *service) UpdatePassword(ctx context.Context, u *domain.User, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if len(newPassword) < domain.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", domain.MinPasswordLength, domain.ErrTooShort)
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.repo.UpdatePassword(ctx, u.UserID, hash, now, u.ResetToken); err != nil {
		return err
	}
	u.PasswordHash = hash
	u.PasswordUpdatedAt = &now
	u.ResetToken = ""
	u.ResetTokenExpiresAt = 0
	u.UpdatedAt = now
	return nil
}

// Delete removes an account. It exists only to roll back a registration
// whose verification e-mail could not be sent.
func (s *service) Delete(ctx context.Context, u *domain.User) error {
	return s.repo.Delete(ctx, u)
}

func (s *service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("password must be at most 72 bytes: %w", domain.ErrValidation)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
