package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are carried in the session cookie
type SessionClaims struct {
	Email   string `json:"email"`
	Version int    `json:"ver,omitempty"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies signed session tokens
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions creates a session manager
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for user
func (s *Sessions) Issue(user *model.UserAccount) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &SessionClaims{
		Email:   user.Email,
		Version: user.SessionVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}
	return token, expires, nil
}

// Current reports whether claims were issued for the account's present
// session version
func (c *SessionClaims) Current(user *model.UserAccount) bool {
	return user != nil && c.Subject == user.UID && c.Version == user.SessionVersion
}

// Parse verifies a token and returns its claims
func (s *Sessions) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
