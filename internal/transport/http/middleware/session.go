package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-session-auth/internal/domain"
)

type contextKey string

const sessionKey contextKey = "session"

// UnauthorizedMessage is returned whenever a protected route is hit without a
// usable session.
const UnauthorizedMessage = "Unauthorized. Please log in first."

// SessionValidator resolves a cookie value to a live session.
type SessionValidator interface {
	Validate(ctx context.Context, cookieValue string) (*domain.SessionHandle, error)
}

// RequireSession rejects requests that carry no valid session cookie and
// stores the resolved session in the request context otherwise.
func RequireSession(v SessionValidator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookieName)
			if err != nil || c.Value == "" {
				writeJSONError(w, http.StatusUnauthorized, UnauthorizedMessage)
				return
			}
			h, err := v.Validate(r.Context(), c.Value)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					slog.ErrorContext(r.Context(), "session lookup failed", "err", err)
				}
				writeJSONError(w, http.StatusUnauthorized, UnauthorizedMessage)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, h)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext retrieves the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (*domain.SessionHandle, bool) {
	h, ok := ctx.Value(sessionKey).(*domain.SessionHandle)
	return h, ok && h != nil && h.Session != nil
}

// WithSession returns a copy of ctx carrying h, as RequireSession would.
func WithSession(ctx context.Context, h *domain.SessionHandle) context.Context {
	return context.WithValue(ctx, sessionKey, h)
}
