package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-session-auth/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "sess:"
	emailPrefix   = "sess-email:"
)

// SessionStore keeps each session as a JSON blob with a TTL matching its
// expiry, plus a per-account set of session ids used for bulk revocation.
type SessionStore struct {
	rdb goredis.UniversalClient
	now func() time.Time
}

func NewSessionStore(rdb goredis.UniversalClient) *SessionStore {
	return &SessionStore{rdb: rdb, now: time.Now}
}

func (s *SessionStore) Put(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Unix(sess.ExpiresAt, 0).Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired: %w", domain.ErrValidation)
	}
	indexKey := emailPrefix + sess.Email
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, sessionPrefix+sess.SessionID, data, ttl)
		pipe.SAdd(ctx, indexKey, sess.SessionID)
		// Sessions share one lifetime, so the newest one bounds the index.
		pipe.Expire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := s.rdb.Get(ctx, sessionPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, sessionPrefix+sessionID)
		pipe.SRem(ctx, emailPrefix+sess.Email, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByEmail removes every session bound to the account address.
func (s *SessionStore) DeleteByEmail(ctx context.Context, email string) error {
	indexKey := emailPrefix + domain.NormalizeEmail(email)
	ids, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("list sessions: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, sessionPrefix+id)
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}
