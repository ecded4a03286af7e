package session

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/rs/zerolog/log"
)

// Cookie names read by the edge gate
const (
	CookieAuthToken = "auth_token"
	CookieUser      = "user"
)

// CookieMirror holds the cookies that mirror the stored session for edge reads.
// The console flushes them onto every response so the browser's cookies follow
// the Store, including expiry after a clear.
type CookieMirror struct {
	lock    sync.Mutex
	maxAge  time.Duration
	secure  bool
	cookies map[string]*http.Cookie
}

// NewCookieMirror creates a mirror whose cookies live for maxAge
func NewCookieMirror(maxAge time.Duration) *CookieMirror {
	return &CookieMirror{
		maxAge:  maxAge,
		cookies: make(map[string]*http.Cookie),
	}
}

// SetSecure marks mirrored cookies Secure (HTTPS deployments)
func (m *CookieMirror) SetSecure(secure bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.secure = secure
}

// Mirror sets the token and user cookies from sess
func (m *CookieMirror) Mirror(sess *Session) {
	userCookie, err := EncodeUserCookie(sess.User)
	if err != nil {
		log.Err(err).Msg("Failed to encode user cookie")
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	maxAge := int(m.maxAge.Seconds())
	m.cookies[CookieAuthToken] = m.cookie(CookieAuthToken, sess.AccessToken, maxAge)
	m.cookies[CookieUser] = m.cookie(CookieUser, userCookie, maxAge)
}

// Expire replaces the mirrored cookies with expired ones
func (m *CookieMirror) Expire() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.cookies[CookieAuthToken] = m.cookie(CookieAuthToken, "", -1)
	m.cookies[CookieUser] = m.cookie(CookieUser, "", -1)
}

// Cookies returns copies of the mirrored cookies ordered by name
func (m *CookieMirror) Cookies() []*http.Cookie {
	m.lock.Lock()
	defer m.lock.Unlock()

	cookies := make([]*http.Cookie, 0, len(m.cookies))
	for _, c := range m.cookies {
		copied := *c
		cookies = append(cookies, &copied)
	}
	sort.Slice(cookies, func(i, j int) bool {
		return cookies[i].Name < cookies[j].Name
	})
	return cookies
}

// WriteTo sets the mirrored cookies on a response
func (m *CookieMirror) WriteTo(w http.ResponseWriter) {
	for _, c := range m.Cookies() {
		http.SetCookie(w, c)
	}
}

func (m *CookieMirror) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// EncodeUserCookie renders the user record as the URL-encoded JSON carried by the user cookie
func EncodeUserCookie(user *users.User) (string, error) {
	b, err := json.Marshal(user)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(b)), nil
}

// DecodeUserCookie parses a user cookie value. Only the role is required.
func DecodeUserCookie(value string) (*users.User, error) {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return nil, err
	}
	var user users.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	return &user, nil
}
