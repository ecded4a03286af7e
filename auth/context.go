package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/redirect"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// State of the session context
type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticating
	StateAuthenticated
	StateLoggingOut
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateLoggingOut:
		return "logging_out"
	}
	return "unknown"
}

// Authenticator verifies credentials and persists the resulting session
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
}

// SessionContext is the façade the console uses for login, logout and role
// checks. It composes the session store, the authenticator and the redirect
// guard, and tracks the lifecycle of the one session it owns.
type SessionContext struct {
	mu            sync.RWMutex
	state         State
	current       *session.Session
	returnPath    string
	store         *session.Store
	authenticator Authenticator
	guard         *redirect.Guard
	nowFunc       func() time.Time
}

// SessionContextOption defines a function type to modify the SessionContext instance.
type SessionContextOption func(*SessionContext)

// WithNowFunc sets the clock used for expiry checks (primarily for testing)
func WithNowFunc(now func() time.Time) SessionContextOption {
	return func(c *SessionContext) {
		c.nowFunc = now
	}
}

// NewSessionContext creates a context in the Initializing state
func NewSessionContext(store *session.Store, authenticator Authenticator, guard *redirect.Guard, options ...SessionContextOption) (*SessionContext, error) {
	if store == nil {
		return nil, errors.New("[NewSessionContext] store is required")
	}
	if authenticator == nil {
		return nil, errors.New("[NewSessionContext] authenticator is required")
	}
	if guard == nil {
		return nil, errors.New("[NewSessionContext] guard is required")
	}

	c := &SessionContext{
		state:         StateInitializing,
		store:         store,
		authenticator: authenticator,
		guard:         guard,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Initialize loads the stored session. A valid one makes the context
// Authenticated and is mirrored to the cookies; anything else clears every
// storage tier and leaves the context Unauthenticated.
func (c *SessionContext) Initialize() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sess := c.store.Load(); sess != nil {
		c.current = sess
		c.state = StateAuthenticated
		c.store.MirrorCookies()
		log.Info().Str("user", sess.User.Username).Str("role", string(sess.User.Role)).Msg("Session restored")
		return c.state
	}

	if err := c.store.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear session storage during initialization")
	}
	c.current = nil
	c.state = StateUnauthenticated
	return c.state
}

// Login authenticates the user. Only an Unauthenticated context may log in;
// a failed attempt returns it to Unauthenticated with the rejection.
func (c *SessionContext) Login(ctx context.Context, username, password string) (*session.Session, error) {
	c.mu.Lock()
	if c.state == StateAuthenticated && c.store.Load() == nil {
		// The stored session expired or was cleared underneath us
		c.current = nil
		c.state = StateUnauthenticated
	}
	if c.state != StateUnauthenticated {
		state := c.state
		c.mu.Unlock()
		return nil, errors.Wrapf(autherrors.ErrInvalidTransition, "[SessionContext.Login] cannot log in while %s", state)
	}
	c.state = StateAuthenticating
	c.mu.Unlock()

	sess, err := c.authenticator.Login(ctx, username, password)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateUnauthenticated
		return nil, err
	}
	c.current = sess
	c.state = StateAuthenticated
	c.guard.Reset(redirect.KeyAuth)
	return sess, nil
}

// Logout clears the stored session and the login/auth redirect ledger keys.
// Callers follow it with a full navigation to the login page.
func (c *SessionContext) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAuthenticated {
		c.state = StateLoggingOut
	}
	err := c.store.Clear()
	c.guard.Reset(redirect.KeyAuth, redirect.KeyLogin)
	c.current = nil
	c.returnPath = ""
	c.state = StateUnauthenticated
	if err != nil {
		return errors.Wrap(err, "[SessionContext.Logout]")
	}
	log.Info().Msg("Logged out")
	return nil
}

// HandleSessionExpired drops the in-memory session after the store has been
// cleared by a failed renewal.
func (c *SessionContext) HandleSessionExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		log.Info().Str("user", c.current.User.Username).Msg("Session expired")
	}
	c.current = nil
	if c.state == StateAuthenticated {
		c.state = StateUnauthenticated
	}
}

// State returns the current lifecycle state
func (c *SessionContext) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ready reports whether initialization has finished
func (c *SessionContext) Ready() bool {
	return c.State() != StateInitializing
}

// Current returns the active session from the store, or nil when there is
// none or it has expired.
func (c *SessionContext) Current() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAuthenticated {
		return nil
	}
	sess := c.store.Load()
	if sess == nil || !sess.Valid(c.nowFunc()) {
		return nil
	}
	c.current = sess
	return sess
}

// IsAuthenticated reports whether a valid session exists
func (c *SessionContext) IsAuthenticated() bool {
	return c.Current() != nil
}

// CheckRole is true iff a session exists and its role is one of roles
func (c *SessionContext) CheckRole(roles ...users.RoleType) bool {
	sess := c.Current()
	return sess != nil && sess.User.HasRole(roles...)
}

// RememberReturnPath stores where login should send the user. Only
// relative paths on this origin are kept.
func (c *SessionContext) RememberReturnPath(path string) {
	if !IsLocalPath(path) {
		return
	}
	c.mu.Lock()
	c.returnPath = path
	c.mu.Unlock()
}

// TakeReturnPath returns and forgets the remembered path, or fallback
func (c *SessionContext) TakeReturnPath(fallback string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	path := c.returnPath
	c.returnPath = ""
	if path == "" {
		return fallback
	}
	return path
}

// IsLocalPath reports whether path is a relative path on this origin
func IsLocalPath(path string) bool {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	u, err := url.Parse(path)
	return err == nil && u.Scheme == "" && u.Host == ""
}
