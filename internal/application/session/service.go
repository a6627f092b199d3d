// Package session creates, resolves and revokes server-side login sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-session-auth/internal/domain"
	pkgtoken "github.com/go-session-auth/internal/pkg/token"
)

// sessionIDBytes gives 256-bit session ids.
const sessionIDBytes = 32

type Service interface {
	Create(ctx context.Context, u *domain.User) (*domain.SessionHandle, error)
	Validate(ctx context.Context, cookieValue string) (*domain.SessionHandle, error)
	Destroy(ctx context.Context, sessionID string) error
	DestroyAllForAccount(ctx context.Context, email string) error
}

// Store persists session records. Both the DynamoDB and Redis adapters
// implement it.
type Store interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteByEmail(ctx context.Context, email string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type cookieSigner interface {
	Sign(sessionID string, expiresAt time.Time) (string, error)
	Parse(token string) (string, error)
}

type service struct {
	store  Store
	users  userStore
	signer cookieSigner
	ttl    time.Duration
	now    func() time.Time
}

type ServiceDeps struct {
	Store  Store
	Users  userStore
	Signer cookieSigner
	TTL    time.Duration
	Now    func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:  deps.Store,
		users:  deps.Users,
		signer: deps.Signer,
		ttl:    deps.TTL,
		now:    now,
	}
}

// Create opens a session for a verified account and returns the handle whose
// Token goes into the client cookie.
func (s *service) Create(ctx context.Context, u *domain.User) (*domain.SessionHandle, error) {
	if !u.Verified {
		return nil, fmt.Errorf("email not verified: %w", domain.ErrForbidden)
	}
	sid, err := pkgtoken.NewHex(sessionIDBytes)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	sess := &domain.Session{
		SessionID: sid,
		UserID:    u.UserID,
		Email:     u.Email,
		CreatedAt: now,
		ExpiresAt: expiresAt.Unix(),
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	cookie, err := s.signer.Sign(sid, expiresAt)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return &domain.SessionHandle{Token: cookie, ExpiresAt: expiresAt, Session: sess}, nil
}

// Validate resolves a cookie value to a live session with its account
// attached. Every failure is ErrUnauthorized.
func (s *service) Validate(ctx context.Context, cookieValue string) (*domain.SessionHandle, error) {
	sid, err := s.signer.Parse(cookieValue)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.Get(ctx, sid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("session not found: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if sess.Expired(now) {
		s.discard(ctx, sid, "expired")
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.Get(ctx, sess.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		s.discard(ctx, sid, "account gone")
		return nil, fmt.Errorf("session account not found: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !u.Verified {
		return nil, fmt.Errorf("session account not verified: %w", domain.ErrUnauthorized)
	}
	// Covers sessions a bulk revocation missed, e.g. through index lag.
	if u.PasswordUpdatedAt != nil && sess.CreatedAt.Before(*u.PasswordUpdatedAt) {
		s.discard(ctx, sid, "password changed")
		return nil, fmt.Errorf("session predates password change: %w", domain.ErrUnauthorized)
	}
	sess.User = u
	return &domain.SessionHandle{
		Token:     cookieValue,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0).UTC(),
		Session:   sess,
	}, nil
}

// Destroy removes a session; destroying an unknown session succeeds.
func (s *service) Destroy(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

func (s *service) DestroyAllForAccount(ctx context.Context, email string) error {
	return s.store.DeleteByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *service) discard(ctx context.Context, sessionID, reason string) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		slog.WarnContext(ctx, "failed to delete stale session", "reason", reason, "err", err)
	}
}
