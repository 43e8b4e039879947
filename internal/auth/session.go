// Package auth turns bearer tokens issued by the hosted auth provider into a
// per-request Session. The session is created by Middleware and torn down by
// sign-out; there is no process-wide current user.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	// ErrUnauthenticated is returned when no valid session is attached
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired is returned for tokens past their exp claim
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked is returned for tokens that were signed out
	ErrSessionRevoked = errors.New("session revoked")
)

// Session is the authenticated caller of one request
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"-"`
}

type sessionKey struct{}

const ginSessionKey = "auth.session"

// NewContext attaches s to ctx
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session attached to ctx
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// RequireSession returns the session or ErrUnauthenticated
func RequireSession(ctx context.Context) (*Session, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return s, nil
}

// UserID returns the caller's id, or "" outside a session
func UserID(ctx context.Context) string {
	if s, ok := FromContext(ctx); ok {
		return s.UserID
	}
	return ""
}

// SessionFromGin returns the session stored by Middleware
func SessionFromGin(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(ginSessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// IsUnauthenticated reports whether err should surface as 401
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionRevoked)
}
