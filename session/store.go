package session

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultLifetime = 12 * time.Hour

// Store is the single source of truth for the console session.
// It writes the session to a session-scoped tier and a persistent tier and
// mirrors it into cookies for the edge gate.
type Store struct {
	lock            sync.RWMutex
	sessionTier     Tier
	persistentTier  Tier
	persistentDirty bool // A clear failed to delete the persistent copy
	cookies         *CookieMirror
	lifetime        time.Duration
	nowFunc         func() time.Time
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// WithLifetime sets the fixed lifetime used to compute ExpiresAt on save
func WithLifetime(lifetime time.Duration) StoreOption {
	return func(s *Store) {
		if lifetime > 0 {
			s.lifetime = lifetime
		}
	}
}

// WithCookieMirror sets the cookie mirror read by the edge gate
func WithCookieMirror(cookies *CookieMirror) StoreOption {
	return func(s *Store) {
		s.cookies = cookies
	}
}

// NewStore creates a Store over the session-scoped and persistent tiers
func NewStore(sessionTier, persistentTier Tier, options ...StoreOption) (*Store, error) {
	if sessionTier == nil {
		return nil, errors.New("[NewStore] session tier is required")
	}
	if persistentTier == nil {
		return nil, errors.New("[NewStore] persistent tier is required")
	}

	s := &Store{
		sessionTier:    sessionTier,
		persistentTier: persistentTier,
		lifetime:       defaultLifetime,
		nowFunc:        time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.cookies == nil {
		s.cookies = NewCookieMirror(s.lifetime)
	}
	return s, nil
}

// Cookies returns the mirror holding the edge-readable cookies
func (s *Store) Cookies() *CookieMirror {
	return s.cookies
}

// Save persists sess to both tiers and the cookie mirror.
// ExpiresAt is recomputed as now + lifetime; the caller's value is ignored.
// The returned session is the one now stored.
func (s *Store) Save(sess *Session) (*Session, error) {
	if sess == nil || sess.AccessToken == "" || !sess.User.Valid() {
		return nil, errors.Wrap(autherrors.ErrMalformedSessionData, "[Store.Save] token and user are required")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	stored := sess.clone()
	stored.ExpiresAt = s.nowFunc().Add(s.lifetime).Truncate(time.Millisecond)
	if err := s.writeLocked(stored); err != nil {
		return nil, err
	}
	return stored.clone(), nil
}

// Renew replaces the credentials of the stored session, keeping its user.
// It only writes when the stored refresh token is still previousRefreshToken,
// so a renewal that lands after a logout or a newer login is dropped.
// An empty refreshToken keeps the previous one.
func (s *Store) Renew(previousRefreshToken, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" {
		return nil, errors.Wrap(autherrors.ErrMalformedSessionData, "[Store.Renew] access token is required")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	current := s.readLocked(false)
	if current == nil || current.RefreshToken != previousRefreshToken {
		return nil, errors.Wrap(autherrors.ErrSessionChanged, "[Store.Renew]")
	}

	renewed := current.clone()
	renewed.AccessToken = accessToken
	if refreshToken != "" {
		renewed.RefreshToken = refreshToken
	}
	renewed.ExpiresAt = s.nowFunc().Add(s.lifetime).Truncate(time.Millisecond)
	if err := s.writeLocked(renewed); err != nil {
		return nil, err
	}
	return renewed.clone(), nil
}

// Load returns the stored session if it is valid, nil otherwise.
// The session-scoped tier is read first, then the persistent tier.
// Missing, unparsable or expired data is treated as no session.
func (s *Store) Load() *Session {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.readLocked(true).clone()
}

// Credentials returns the stored session regardless of its expiry.
// The fetch wrapper uses it to attach a possibly stale token and let the
// API decide, and the refresh coordinator uses it to find the refresh token.
func (s *Store) Credentials() *Session {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.readLocked(false).clone()
}

// MirrorCookies rewrites the edge cookies from the stored session
func (s *Store) MirrorCookies() {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if sess := s.readLocked(true); sess != nil {
		s.cookies.Mirror(sess)
	}
}

// Clear removes the session from both tiers and expires the cookies. Idempotent.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.clearLocked()
}

// ClearIf clears the session only while its refresh token is still
// refreshToken, and reports whether the stored session is now gone.
// A session saved since then is left alone and false is returned.
func (s *Store) ClearIf(refreshToken string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if current := s.readLocked(false); current != nil && current.RefreshToken != refreshToken {
		return false, nil
	}
	return true, s.clearLocked()
}

func (s *Store) clearLocked() error {
	s.cookies.Expire()
	var firstErr error
	if err := s.sessionTier.Delete(Keys...); err != nil {
		log.Err(err).Str("tier", "session").Msg("Failed to clear session tier")
		firstErr = errors.Wrap(err, "[Store.Clear] session tier")
	}
	if err := s.persistentTier.Delete(Keys...); err != nil {
		// Reads skip the persistent copy until it is overwritten or deleted
		s.persistentDirty = true
		log.Err(err).Str("tier", "persistent").Msg("Failed to clear session tier")
		if firstErr == nil {
			firstErr = errors.Wrap(err, "[Store.Clear] persistent tier")
		}
		return firstErr
	}
	s.persistentDirty = false
	return firstErr
}

type namedTier struct {
	name string
	tier Tier
}

// tiers returns the tiers in read order
func (s *Store) tiers() []namedTier {
	return []namedTier{{"session", s.sessionTier}, {"persistent", s.persistentTier}}
}

// writeLocked writes the whole unit to each tier. The session-scoped tier is
// authoritative; a persistent tier failure is logged and tolerated.
func (s *Store) writeLocked(sess *Session) error {
	values, err := encode(sess)
	if err != nil {
		return errors.Wrap(err, "[Store] encode")
	}
	if err := s.sessionTier.Put(values); err != nil {
		return errors.Wrap(err, "[Store] session tier put")
	}
	if err := s.persistentTier.Put(values); err != nil {
		log.Warn().Err(err).Msg("Persistent session tier write failed")
	} else {
		s.persistentDirty = false
	}
	s.cookies.Mirror(sess)
	return nil
}

func (s *Store) readLocked(requireValid bool) *Session {
	now := s.nowFunc()
	for _, t := range s.tiers() {
		if t.name == "persistent" && s.persistentDirty {
			continue
		}
		values, err := t.tier.Get(Keys...)
		if err != nil {
			log.Warn().Err(err).Str("tier", t.name).Msg("Session tier read failed")
			continue
		}
		sess, err := decode(values)
		if err != nil {
			log.Warn().Err(err).Str("tier", t.name).Msg("Ignoring malformed session data")
			continue
		}
		if sess == nil {
			continue
		}
		if requireValid && !sess.Valid(now) {
			continue
		}
		return sess
	}
	return nil
}

func encode(sess *Session) (map[string]string, error) {
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		KeyAccessToken:  sess.AccessToken,
		KeyRefreshToken: sess.RefreshToken,
		KeyExpiresAt:    strconv.FormatInt(sess.ExpiresAt.UnixMilli(), 10),
		KeyUser:         string(userJSON),
	}, nil
}

// decode returns nil, nil when no session is stored, and ErrMalformedSessionData
// when only part of the unit is present or a field does not parse.
func decode(values map[string]string) (*Session, error) {
	if len(values) == 0 {
		return nil, nil
	}
	accessToken := values[KeyAccessToken]
	expiresAt := values[KeyExpiresAt]
	userJSON := values[KeyUser]
	if accessToken == "" || expiresAt == "" || userJSON == "" {
		return nil, errors.Wrap(autherrors.ErrMalformedSessionData, "missing session field")
	}

	ms, err := strconv.ParseInt(expiresAt, 10, 64)
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrMalformedSessionData, "expiry: "+err.Error())
	}

	var user users.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, errors.Wrap(autherrors.ErrMalformedSessionData, "user: "+err.Error())
	}
	if !user.Valid() {
		return nil, errors.Wrap(autherrors.ErrMalformedSessionData, "user record incomplete")
	}

	return &Session{
		AccessToken:  accessToken,
		RefreshToken: values[KeyRefreshToken],
		ExpiresAt:    time.UnixMilli(ms),
		User:         &user,
	}, nil
}
