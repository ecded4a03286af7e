package redirect

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-attendance-console/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Redirect classes recorded in the ledger
const (
	KeyAuth  = "auth-redirect"  // unauthenticated user sent to login
	KeyLogin = "login-redirect" // authenticated user sent away from login
)

// DefaultCooldown is the minimum gap between two redirects of the same class
const DefaultCooldown = 2000 * time.Millisecond

// Guard arbitrates forced navigations so the edge gate, the component gate and
// the login page cannot bounce a user between each other.
// The ledger maps a redirect class to the time the last redirect of that class fired.
type Guard struct {
	mu       sync.Mutex
	cooldown time.Duration
	ledger   map[string]time.Time
	nowFunc  func() time.Time
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

// WithCooldown sets the cooldown window
func WithCooldown(cooldown time.Duration) GuardOption {
	return func(g *Guard) {
		if cooldown > 0 {
			g.cooldown = cooldown
		}
	}
}

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.nowFunc = now
	}
}

// NewGuard creates a guard with an empty ledger
func NewGuard(options ...GuardOption) *Guard {
	g := &Guard{
		cooldown: DefaultCooldown,
		ledger:   make(map[string]time.Time),
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// MayRedirect reports whether a redirect of class key may fire now.
// On true the current time is recorded under key; on false nothing is written.
// Check and record happen under one lock, so of two racing callers only one sees true.
func (g *Guard) MayRedirect(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	if last, ok := g.ledger[key]; ok && now.Sub(last) < g.cooldown {
		metrics.RedirectsSuppressed.WithLabelValues(key).Inc()
		log.Debug().Str("key", key).Dur("since_last", now.Sub(last)).Msg("Redirect suppressed")
		return false
	}
	g.ledger[key] = now
	return true
}

// RetryAfter returns how long a redirect of class key stays suppressed.
// Zero means MayRedirect would allow it now.
func (g *Guard) RetryAfter(key string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.ledger[key]
	if !ok {
		return 0
	}
	if remaining := g.cooldown - g.nowFunc().Sub(last); remaining > 0 {
		return remaining
	}
	return 0
}

// Reset forgets the given classes. Logout uses it so the next login is not throttled.
func (g *Guard) Reset(keys ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		delete(g.ledger, k)
	}
}
