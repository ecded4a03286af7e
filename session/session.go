package session

import (
	"time"

	"github.com/jrsteele09/go-attendance-console/users"
	"golang.org/x/oauth2"
)

// Storage keys, identical in every tier
const (
	KeyAccessToken  = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyExpiresAt    = "expires_at" // epoch milliseconds, string encoded
	KeyUser         = "user"       // JSON encoded users.User
)

// Keys is the unit written and cleared together
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyExpiresAt, KeyUser}

// Session is the authenticated identity plus credentials cached by the console
type Session struct {
	AccessToken  string      // Opaque bearer credential
	RefreshToken string      // Opaque renewal credential
	ExpiresAt    time.Time   // Absolute expiry, computed by the Store on save
	User         *users.User // Identity record issued by the provider
}

// Valid reports whether the session carries a token, an expiry and a user, and has not expired at now
func (s *Session) Valid(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.AccessToken != "" && !s.ExpiresAt.IsZero() && s.User.Valid() && s.ExpiresAt.After(now)
}

// Role returns the session user's role, or the empty role when there is no user
func (s *Session) Role() users.RoleType {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.Role
}

// Token exposes the access credential as an oauth2 bearer token
func (s *Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	return &c
}
