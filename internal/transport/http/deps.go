package http

import (
	"context"
	"time"

	"github.com/go-session-auth/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByResetToken resolves a pending reset token via the sparse
	// `reset_token-index` GSI.
	GetByResetToken(ctx context.Context, token string) (*domain.User, error)
	SetOTP(ctx context.Context, userID, code string, expiresAt int64) error
	MarkVerified(ctx context.Context, userID, code string) error
	SetResetToken(ctx context.Context, userID, token string, expiresAt int64) error
	UpdatePassword(ctx context.Context, userID, hash string, at time.Time, resetToken string) error
	Delete(ctx context.Context, u *domain.User) error
}

// SessionRepository is the minimal interface the router requires from a
// session store. The DynamoDB and Redis stores both satisfy it.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteByEmail(ctx context.Context, email string) error
}

// CookieSigner signs and verifies session cookie values.
type CookieSigner interface {
	Sign(sessionID string, expiresAt time.Time) (string, error)
	Parse(token string) (string, error)
}

// TemplateStore supplies e-mail template overrides.
type TemplateStore interface {
	Fetch(ctx context.Context, key string) (string, error)
}
