package domain

import "time"

// Session is a server-side login record. ExpiresAt is Unix seconds and doubles
// as the DynamoDB TTL attribute.
type Session struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"`
	User      *User     `json:"user,omitempty" dynamodbav:"-"`
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// SessionHandle is what a request carries once authenticated: the signed
// cookie value handed to the client and the session it resolves to.
type SessionHandle struct {
	Token     string
	ExpiresAt time.Time
	Session   *Session
}
