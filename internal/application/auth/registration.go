package auth

import (
	"context"
	"log/slog"

	"github.com/go-session-auth/internal/domain"
	"github.com/go-session-auth/internal/infrastructure/sns"
)

// registration is a created-but-unannounced account. It ends in exactly one
// of commit or rollback.
type registration struct {
	s    *service
	user *domain.User
	code string
}

// beginRegistration creates the pending account and issues its OTP.
func (s *service) beginRegistration(ctx context.Context, req domain.RegisterRequest) (*registration, error) {
	u, err := s.credentials.Create(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	reg := &registration{s: s, user: u}
	code, err := s.otps.Issue(ctx, u)
	if err != nil {
		reg.rollback(ctx, err)
		return nil, err
	}
	reg.code = code
	return reg, nil
}

func (r *registration) commit(ctx context.Context) {
	slog.InfoContext(ctx, "user registered", "user_id", r.user.UserID)
	r.s.publish(ctx, sns.EventUserRegistered, r.user)
}

// rollback deletes the pending account after cause aborted the registration.
func (r *registration) rollback(ctx context.Context, cause error) {
	slog.WarnContext(ctx, "registration aborted, removing account", "user_id", r.user.UserID, "err", cause)
	if err := r.s.credentials.Delete(context.WithoutCancel(ctx), r.user); err != nil {
		slog.ErrorContext(ctx, "failed to remove aborted registration", "user_id", r.user.UserID, "err", err)
	}
}
