package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-session-auth/internal/domain"
	"github.com/go-session-auth/internal/infrastructure/sns"
)

// memUsers is an in-memory user store with the same conditional-write
// semantics as the DynamoDB repository.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]domain.User{}, byEmail: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return domain.ErrConflict
	}
	m.byID[u.UserID] = *u
	m.byEmail[u.Email] = u.UserID
	return nil
}

func (m *memUsers) Get(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	id, ok := m.byEmail[domain.NormalizeEmail(email)]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.Get(ctx, id)
}

func (m *memUsers) GetByResetToken(_ context.Context, token string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.ResetToken != "" && u.ResetToken == token {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) update(id string, fn func(u *domain.User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	m.byID[id] = u
	return nil
}

func (m *memUsers) SetOTP(_ context.Context, id, code string, exp int64) error {
	return m.update(id, func(u *domain.User) error {
		if u.Verified {
			return domain.ErrAlreadyVerified
		}
		u.OTP, u.OTPExpiresAt = code, exp
		return nil
	})
}

func (m *memUsers) MarkVerified(_ context.Context, id, code string) error {
	return m.update(id, func(u *domain.User) error {
		if u.Verified {
			return domain.ErrAlreadyVerified
		}
		if u.OTP != code {
			return domain.ErrMismatch
		}
		u.Verified, u.OTP, u.OTPExpiresAt = true, "", 0
		return nil
	})
}

func (m *memUsers) SetResetToken(_ context.Context, id, token string, exp int64) error {
	return m.update(id, func(u *domain.User) error {
		u.ResetToken, u.ResetTokenExpiresAt = token, exp
		return nil
	})
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string, at time.Time, token string) error {
	return m.update(id, func(u *domain.User) error {
		if token != "" && (u.ResetToken != token || u.ResetTokenExpiresAt <= at.Unix()) {
			return domain.ErrInvalidToken
		}
		u.PasswordHash, u.PasswordUpdatedAt = hash, &at
		u.ResetToken, u.ResetTokenExpiresAt = "", 0
		return nil
	})
}

func (m *memUsers) Delete(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, u.UserID)
	delete(m.byEmail, u.Email)
	return nil
}

// memSessions is an in-memory session store.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newMemSessions() *memSessions { return &memSessions{sessions: map[string]domain.Session{}} }

func (m *memSessions) Put(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.User = nil
	m.sessions[s.SessionID] = cp
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteByEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.Email == email {
			delete(m.sessions, id)
		}
	}
	return nil
}

// outbox records every e-mail and can be told to fail.
type outbox struct {
	mu   sync.Mutex
	sent []mail
	fail error
}

type mail struct{ to, subject, body string }

func (o *outbox) SendEmail(to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, mail{to, subject, body})
	return nil
}

func (o *outbox) last() mail {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return mail{}
	}
	return o.sent[len(o.sent)-1]
}

// events records published account events.
type events struct {
	mu    sync.Mutex
	types []string
	fail  bool
}

func (e *events) Publish(_ context.Context, ev sns.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return errors.New("sns unavailable")
	}
	e.types = append(e.types, ev.Type)
	return nil
}

// idSigner uses the session id itself as the cookie value.
type idSigner struct{}

func (idSigner) Sign(id string, _ time.Time) (string, error) { return id, nil }
func (idSigner) Parse(tok string) (string, error) {
	if tok == "" {
		return "", domain.ErrUnauthorized
	}
	return tok, nil
}
